package storage

import (
	"context"
	"time"

	"github.com/sheetserve/sheetserve/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Projects
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, userID, slug string) (*domain.Project, error)
	ListProjects(ctx context.Context, userID, search string, page, limit int) ([]*domain.Project, int, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Endpoints
	CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error)
	// GetEndpointBySlugs resolves an endpoint for the public data API.
	// Both the endpoint and its parent project must be active; anything
	// else is ErrNotFound, so deactivated data is indistinguishable from
	// missing data. The result carries the parent project summary and the
	// full collection.
	GetEndpointBySlugs(ctx context.Context, projectSlug, endpointSlug string) (*domain.Endpoint, error)
	ListEndpoints(ctx context.Context, projectID, search string, page, limit int) ([]*domain.Endpoint, int, error)
	// ReplaceEndpointData rewrites the whole collection. The data,
	// record_count and updated_at columns change in a single statement;
	// a stale count next to fresh data is a correctness bug.
	ReplaceEndpointData(ctx context.Context, endpointID string, records []domain.Record) error
	DeleteEndpoint(ctx context.Context, id string) error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
	CountAPIKeys(ctx context.Context, userID string) (int, error)
	SetAPIKeyActive(ctx context.Context, id string, active bool) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	DeleteAPIKey(ctx context.Context, id string) error

	// Rate limits. Day is a UTC midnight bucket boundary.
	RateLimitCount(ctx context.Context, apiKeyID, method string, day time.Time) (int, error)
	// IncrementRateLimit is a single atomic upsert-increment and returns
	// the new count. Concurrent callers on the same bucket must not lose
	// increments.
	IncrementRateLimit(ctx context.Context, apiKeyID, method string, day time.Time) (int, error)
	ListRateLimits(ctx context.Context, apiKeyID string, day time.Time) ([]*domain.RateLimit, error)

	// API call audit log
	CreateAPICall(ctx context.Context, call *domain.APICall) error
	// ListAPICalls returns calls against the user's endpoints since the
	// given instant, newest first.
	ListAPICalls(ctx context.Context, userID string, since time.Time) ([]*domain.APICall, error)
}
