package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sheetserve/sheetserve/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// NewWithDB wraps an existing connection without running migrations.
// Used by tests that supply a mocked database.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: sqlx.NewDb(db, driver), driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================
// Projects
// ============================================

func (s *Store) CreateProject(ctx context.Context, project *domain.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, title, description, slug, api_protection, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		project.ID, project.UserID, project.Title, project.Description, project.Slug,
		project.APIProtection, project.IsActive, project.CreatedAt, project.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	err := s.db.GetContext(ctx, &project,
		`SELECT id, user_id, title, description, slug, api_protection, is_active, created_at, updated_at
		 FROM projects WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &project, err
}

func (s *Store) GetProjectBySlug(ctx context.Context, userID, slug string) (*domain.Project, error) {
	query := `SELECT id, user_id, title, description, slug, api_protection, is_active, created_at, updated_at
		 FROM projects WHERE slug = $1`
	args := []any{slug}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	var project domain.Project
	err := s.db.GetContext(ctx, &project, query, args...)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &project, err
}

func (s *Store) ListProjects(ctx context.Context, userID, search string, page, limit int) ([]*domain.Project, int, error) {
	where := `WHERE user_id = $1`
	args := []any{userID}
	if search != "" {
		where += ` AND (lower(title) LIKE $2 OR lower(description) LIKE $2)`
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects `+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, title, description, slug, api_protection, is_active, created_at, updated_at
		 FROM projects ` + where + ` ORDER BY created_at DESC` + limitClause(page, limit)

	projects := []*domain.Project{}
	if err := s.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET title = $1, description = $2, api_protection = $3, is_active = $4, updated_at = $5
		 WHERE id = $6`,
		project.Title, project.Description, project.APIProtection, project.IsActive, project.UpdatedAt, project.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ============================================
// Endpoints
// ============================================

// endpointRow adds the serialized collection and parent project summary to
// the endpoint columns for joined scans.
type endpointRow struct {
	domain.Endpoint
	JSONData       string         `db:"json_data"`
	ProjectTitle   sql.NullString `db:"project_title"`
	ProjectSlug    sql.NullString `db:"project_slug"`
	ProjectProtect sql.NullBool   `db:"project_api_protection"`
}

func (r *endpointRow) toDomain() (*domain.Endpoint, error) {
	e := r.Endpoint
	if r.JSONData != "" {
		if err := json.Unmarshal([]byte(r.JSONData), &e.Data); err != nil {
			return nil, fmt.Errorf("decoding endpoint data: %w", err)
		}
	}
	if r.ProjectSlug.Valid {
		e.Project = &domain.Project{
			ID:            e.ProjectID,
			Title:         r.ProjectTitle.String,
			Slug:          r.ProjectSlug.String,
			APIProtection: r.ProjectProtect.Bool,
			IsActive:      true,
		}
	}
	return &e, nil
}

func (s *Store) CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error {
	data, err := json.Marshal(endpoint.Data)
	if err != nil {
		return fmt.Errorf("encoding endpoint data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO endpoints (id, project_id, title, description, slug, file_name, file_type, is_active, record_count, json_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		endpoint.ID, endpoint.ProjectID, endpoint.Title, endpoint.Description, endpoint.Slug,
		endpoint.FileName, endpoint.FileType, endpoint.IsActive, endpoint.RecordCount,
		string(data), endpoint.CreatedAt, endpoint.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error) {
	var row endpointRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, project_id, title, description, slug, file_name, file_type, is_active, record_count, json_data, created_at, updated_at
		 FROM endpoints WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *Store) GetEndpointBySlugs(ctx context.Context, projectSlug, endpointSlug string) (*domain.Endpoint, error) {
	var row endpointRow
	err := s.db.GetContext(ctx, &row,
		`SELECT e.id, e.project_id, e.title, e.description, e.slug, e.file_name, e.file_type,
		        e.is_active, e.record_count, e.json_data, e.created_at, e.updated_at,
		        p.title AS project_title, p.slug AS project_slug, p.api_protection AS project_api_protection
		 FROM endpoints e
		 JOIN projects p ON p.id = e.project_id
		 WHERE e.slug = $1 AND p.slug = $2 AND e.is_active AND p.is_active`,
		endpointSlug, projectSlug)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *Store) ListEndpoints(ctx context.Context, projectID, search string, page, limit int) ([]*domain.Endpoint, int, error) {
	where := `WHERE project_id = $1`
	args := []any{projectID}
	if search != "" {
		where += ` AND (lower(title) LIKE $2 OR lower(description) LIKE $2)`
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM endpoints `+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, project_id, title, description, slug, file_name, file_type, is_active, record_count, created_at, updated_at
		 FROM endpoints ` + where + ` ORDER BY created_at DESC` + limitClause(page, limit)

	endpoints := []*domain.Endpoint{}
	if err := s.db.SelectContext(ctx, &endpoints, query, args...); err != nil {
		return nil, 0, err
	}
	return endpoints, total, nil
}

func (s *Store) ReplaceEndpointData(ctx context.Context, endpointID string, records []domain.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding endpoint data: %w", err)
	}
	// One statement so the collection, its count and updated_at can never
	// disagree.
	res, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET json_data = $1, record_count = $2, updated_at = $3 WHERE id = $4`,
		string(data), len(records), time.Now().UTC(), endpointID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteEndpoint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, is_active, last_used_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.IsActive,
		key.LastUsedAt, key.CreatedAt, key.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		`SELECT id, user_id, name, key_hash, key_prefix, is_active, last_used_at, created_at, updated_at
		 FROM api_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, user_id, name, key_hash, key_prefix, is_active, last_used_at, created_at, updated_at
		 FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return keys, err
}

func (s *Store) CountAPIKeys(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys WHERE user_id = $1`, userID)
	return count, err
}

func (s *Store) SetAPIKeyActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ============================================
// Rate limits
// ============================================

func (s *Store) RateLimitCount(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT request_count FROM rate_limits WHERE api_key_id = $1 AND method = $2 AND reset_date = $3`,
		apiKeyID, strings.ToUpper(method), day.UTC())
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

func (s *Store) IncrementRateLimit(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	// Upsert-increment in one statement. A read-then-write pair here would
	// let concurrent requests on the same key undercount.
	now := time.Now().UTC()
	var count int
	err := s.db.GetContext(ctx, &count,
		`INSERT INTO rate_limits (id, api_key_id, method, request_count, reset_date, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, $4, $5, $5)
		 ON CONFLICT (api_key_id, method, reset_date)
		 DO UPDATE SET request_count = rate_limits.request_count + 1, updated_at = $5
		 RETURNING request_count`,
		uuid.New().String(), apiKeyID, strings.ToUpper(method), day.UTC(), now)
	return count, err
}

func (s *Store) ListRateLimits(ctx context.Context, apiKeyID string, day time.Time) ([]*domain.RateLimit, error) {
	limits := []*domain.RateLimit{}
	err := s.db.SelectContext(ctx, &limits,
		`SELECT id, api_key_id, method, request_count, reset_date, created_at, updated_at
		 FROM rate_limits WHERE api_key_id = $1 AND reset_date = $2 ORDER BY method`,
		apiKeyID, day.UTC())
	return limits, err
}

// ============================================
// API calls
// ============================================

func (s *Store) CreateAPICall(ctx context.Context, call *domain.APICall) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_calls (id, endpoint_id, api_key_id, method, path, query, headers, status_code, duration_ms, ip_address, user_agent, response, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		call.ID, call.EndpointID, call.APIKeyID, call.Method, call.Path, call.Query, call.Headers,
		call.StatusCode, call.DurationMS, call.IPAddress, call.UserAgent, call.Response, call.CreatedAt)
	return err
}

func (s *Store) ListAPICalls(ctx context.Context, userID string, since time.Time) ([]*domain.APICall, error) {
	calls := []*domain.APICall{}
	err := s.db.SelectContext(ctx, &calls,
		`SELECT c.id, c.endpoint_id, c.api_key_id, c.method, c.path, c.query, c.headers,
		        c.status_code, c.duration_ms, c.ip_address, c.user_agent, c.response, c.created_at
		 FROM api_calls c
		 JOIN endpoints e ON e.id = c.endpoint_id
		 JOIN projects p ON p.id = e.project_id
		 WHERE p.user_id = $1 AND c.created_at >= $2
		 ORDER BY c.created_at DESC`, userID, since.UTC())
	return calls, err
}

// limitClause renders pagination; a non-positive limit means "no paging".
func limitClause(page, limit int) string {
	if limit <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, (page-1)*limit)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
