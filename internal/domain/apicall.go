package domain

import "time"

// APICall is an append-only audit record of one inbound data API request.
// It is written best-effort after the response is decided and never
// updated or deleted.
type APICall struct {
	ID         string    `json:"id" db:"id"`
	EndpointID string    `json:"endpoint_id" db:"endpoint_id"`
	APIKeyID   string    `json:"api_key_id,omitempty" db:"api_key_id"`
	Method     string    `json:"method" db:"method"`
	Path       string    `json:"path" db:"path"`
	Query      string    `json:"query" db:"query"`
	Headers    string    `json:"headers" db:"headers"`
	StatusCode int       `json:"status_code" db:"status_code"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	IPAddress  string    `json:"ip_address" db:"ip_address"`
	UserAgent  string    `json:"user_agent" db:"user_agent"`
	Response   string    `json:"response,omitempty" db:"response"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
