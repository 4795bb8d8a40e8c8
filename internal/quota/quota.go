// Package quota owns the per-key, per-method, per-UTC-day request counters
// and the daily limit policy. The policy lives in one place so the
// authenticator and the usage reporting can never drift apart.
package quota

import (
	"context"
	"strings"
	"time"
)

// Policy maps HTTP methods to their daily request limits.
type Policy struct {
	Get         int
	Post        int
	Patch       int
	Delete      int
	DefaultOver int
}

// DefaultPolicy returns the fixed production limits.
func DefaultPolicy() Policy {
	return Policy{Get: 100, Post: 20, Patch: 20, Delete: 20, DefaultOver: 20}
}

// Limit returns the daily limit for a method. Unknown methods get the
// default bucket.
func (p Policy) Limit(method string) int {
	switch strings.ToUpper(method) {
	case "GET":
		return p.Get
	case "POST":
		return p.Post
	case "PATCH":
		return p.Patch
	case "DELETE":
		return p.Delete
	default:
		return p.DefaultOver
	}
}

// Methods lists the bucketed methods in reporting order.
func (p Policy) Methods() []string {
	return []string{"GET", "POST", "PATCH", "DELETE"}
}

// Info is the quota context attached to an authenticated request.
type Info struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"resetDate"`
}

// Store is the counter backend. Increment must be atomic; a read followed
// by a write would lose counts under concurrent requests on the same key.
type Store interface {
	// Count returns the bucket's current value, 0 when the bucket does
	// not exist yet.
	Count(ctx context.Context, apiKeyID, method string, day time.Time) (int, error)
	// Increment atomically bumps the bucket, creating it at 1, and
	// returns the new count.
	Increment(ctx context.Context, apiKeyID, method string, day time.Time) (int, error)
}

// Day truncates an instant to its UTC calendar day (bucket boundary
// 00:00:00.000Z).
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextReset returns the next UTC midnight after t.
func NextReset(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}
