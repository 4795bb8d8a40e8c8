// Package auth decides, per data API request, whether the caller may
// proceed and what quota context applies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/quota"
	"github.com/sheetserve/sheetserve/internal/storage"
	"github.com/sirupsen/logrus"
)

// Decision is the outcome of authenticating one request.
type Decision struct {
	Allowed bool
	// Status and Reason are set on denials and become the HTTP response.
	Status int
	Reason string
	// Key is the resolved API key, nil for public projects.
	Key *domain.APIKey
	// Quota is the caller's bucket state, nil when no key applies.
	Quota *quota.Info
}

// Authenticator validates API keys and reserves quota.
type Authenticator struct {
	store  storage.Storage
	quota  quota.Store
	policy quota.Policy
	log    *logrus.Logger
	now    func() time.Time
}

// New creates an Authenticator.
func New(store storage.Storage, quotaStore quota.Store, policy quota.Policy, log *logrus.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		quota:  quotaStore,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// Authenticate applies the protection policy for one request.
//
// Public projects always pass with no quota context. (IP-based limiting for
// public projects is deliberately not implemented.) Protected projects
// require an active API key and an open quota bucket for the method's UTC
// day; the bucket is incremented atomically on success and left untouched
// on a 429.
func (a *Authenticator) Authenticate(ctx context.Context, secret string, protected bool, method string) (Decision, error) {
	if !protected {
		return Decision{Allowed: true}, nil
	}

	method = strings.ToUpper(method)

	if secret == "" {
		return Decision{
			Status: http.StatusUnauthorized,
			Reason: "API key required for this protected endpoint",
		}, nil
	}

	key, err := a.store.GetAPIKeyByHash(ctx, HashKey(secret))
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !key.IsActive) {
		return Decision{
			Status: http.StatusUnauthorized,
			Reason: "Invalid API key",
		}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("looking up API key: %w", err)
	}

	now := a.now()
	day := quota.Day(now)
	limit := a.policy.Limit(method)

	used, err := a.quota.Count(ctx, key.ID, method, day)
	if err != nil {
		return Decision{}, fmt.Errorf("reading quota bucket: %w", err)
	}
	if used >= limit {
		return Decision{
			Status: http.StatusTooManyRequests,
			Reason: fmt.Sprintf("Rate limit exceeded. %s limit: %d/day", method, limit),
			Key:    key,
			Quota: &quota.Info{
				Limit:     limit,
				Used:      used,
				Remaining: 0,
				Reset:     quota.NextReset(now),
			},
		}, nil
	}

	newCount, err := a.quota.Increment(ctx, key.ID, method, day)
	if err != nil {
		return Decision{}, fmt.Errorf("incrementing quota bucket: %w", err)
	}

	// Stamp last_used_at without holding up the request.
	go func(id string) {
		if err := a.store.UpdateAPIKeyLastUsed(context.Background(), id); err != nil {
			a.log.WithError(err).WithField("api_key_id", id).Debug("failed to update key last used")
		}
	}(key.ID)

	remaining := limit - newCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed: true,
		Key:     key,
		Quota: &quota.Info{
			Limit:     limit,
			Used:      newCount,
			Remaining: remaining,
			Reset:     quota.NextReset(now),
		},
	}, nil
}
