package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sheetserve/sheetserve/internal/domain"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	projects   map[string]*domain.Project  // key: id
	endpoints  map[string]*domain.Endpoint // key: id
	apiKeys    map[string]*domain.APIKey   // key: id
	rateLimits map[string]*domain.RateLimit
	apiCalls   []*domain.APICall
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		projects:   make(map[string]*domain.Project),
		endpoints:  make(map[string]*domain.Endpoint),
		apiKeys:    make(map[string]*domain.APIKey),
		rateLimits: make(map[string]*domain.RateLimit),
	}
}

func (s *Store) Close() error { return nil }

// bucketKey identifies one rate-limit row: key id + method + UTC day.
func bucketKey(apiKeyID, method string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", apiKeyID, strings.ToUpper(method), day.UTC().Format("2006-01-02"))
}

func matchSearch(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page, limit int) ([]T, int) {
	total := len(items)
	if limit <= 0 {
		return items, total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= total {
		return []T{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

// Projects

func (s *Store) CreateProject(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Slug == project.Slug {
			return domain.ErrAlreadyExists
		}
	}
	c := *project
	s.projects[project.ID] = &c
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) GetProjectBySlug(ctx context.Context, userID, slug string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.Slug == slug && (userID == "" || p.UserID == userID) {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListProjects(ctx context.Context, userID, search string, page, limit int) ([]*domain.Project, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Project
	for _, p := range s.projects {
		if p.UserID != userID {
			continue
		}
		if !matchSearch(search, p.Title, p.Description) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	out, total := paginate(out, page, limit)
	return out, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *project
	s.projects[project.ID] = &c
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.projects, id)
	for eid, e := range s.endpoints {
		if e.ProjectID == id {
			delete(s.endpoints, eid)
		}
	}
	return nil
}

// Endpoints

func (s *Store) CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.endpoints {
		if e.ProjectID == endpoint.ProjectID && e.Slug == endpoint.Slug {
			return domain.ErrAlreadyExists
		}
	}
	c := *endpoint
	c.Data = cloneRecords(endpoint.Data)
	c.Project = nil
	s.endpoints[endpoint.ID] = &c
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.endpoints[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *e
	c.Data = cloneRecords(e.Data)
	return &c, nil
}

func (s *Store) GetEndpointBySlugs(ctx context.Context, projectSlug, endpointSlug string) (*domain.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.endpoints {
		if e.Slug != endpointSlug || !e.IsActive {
			continue
		}
		p, ok := s.projects[e.ProjectID]
		if !ok || p.Slug != projectSlug || !p.IsActive {
			continue
		}
		c := *e
		c.Data = cloneRecords(e.Data)
		pc := *p
		c.Project = &pc
		return &c, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListEndpoints(ctx context.Context, projectID, search string, page, limit int) ([]*domain.Endpoint, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Endpoint
	for _, e := range s.endpoints {
		if e.ProjectID != projectID {
			continue
		}
		if !matchSearch(search, e.Title, e.Description) {
			continue
		}
		c := *e
		c.Data = nil // listings carry metadata only
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	out, total := paginate(out, page, limit)
	return out, total, nil
}

func (s *Store) ReplaceEndpointData(ctx context.Context, endpointID string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[endpointID]
	if !ok {
		return domain.ErrNotFound
	}
	e.Data = cloneRecords(records)
	e.RecordCount = len(records)
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.endpoints, id)
	return nil
}

func cloneRecords(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// API Keys

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.apiKeys {
		if k.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	c := *key
	s.apiKeys[key.ID] = &c
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.apiKeys {
		if k.KeyHash == keyHash {
			c := *k
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.APIKey
	for _, k := range s.apiKeys {
		if k.UserID == userID {
			c := *k
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountAPIKeys(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, k := range s.apiKeys {
		if k.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) SetAPIKeyActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	k.IsActive = active
	k.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

// Rate limits

func (s *Store) RateLimitCount(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rl, ok := s.rateLimits[bucketKey(apiKeyID, method, day)]
	if !ok {
		return 0, nil
	}
	return rl.RequestCount, nil
}

func (s *Store) IncrementRateLimit(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucketKey(apiKeyID, method, day)
	rl, ok := s.rateLimits[key]
	if !ok {
		now := time.Now().UTC()
		d := day.UTC()
		rl = &domain.RateLimit{
			ID:        uuid.New().String(),
			APIKeyID:  apiKeyID,
			Method:    strings.ToUpper(method),
			ResetDate: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.rateLimits[key] = rl
	}
	rl.RequestCount++
	rl.UpdatedAt = time.Now().UTC()
	return rl.RequestCount, nil
}

func (s *Store) ListRateLimits(ctx context.Context, apiKeyID string, day time.Time) ([]*domain.RateLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := day.UTC()
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	var out []*domain.RateLimit
	for _, rl := range s.rateLimits {
		if rl.APIKeyID == apiKeyID && rl.ResetDate.Equal(d) {
			c := *rl
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, nil
}

// API calls

func (s *Store) CreateAPICall(ctx context.Context, call *domain.APICall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *call
	s.apiCalls = append(s.apiCalls, &c)
	return nil
}

func (s *Store) ListAPICalls(ctx context.Context, userID string, since time.Time) ([]*domain.APICall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := make(map[string]bool)
	for _, e := range s.endpoints {
		if p, ok := s.projects[e.ProjectID]; ok && p.UserID == userID {
			owned[e.ID] = true
		}
	}
	var out []*domain.APICall
	for _, call := range s.apiCalls {
		if owned[call.EndpointID] && !call.CreatedAt.Before(since) {
			c := *call
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
