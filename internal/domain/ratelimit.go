package domain

import "time"

// RateLimit is the per-key, per-method usage counter for one UTC calendar
// day. ResetDate is the UTC midnight that opened the bucket. Rows are
// created lazily on the first request of the day and incremented atomically
// afterwards; stale rows are never deleted, just not read.
type RateLimit struct {
	ID           string    `json:"id" db:"id"`
	APIKeyID     string    `json:"api_key_id" db:"api_key_id"`
	Method       string    `json:"method" db:"method"`
	RequestCount int       `json:"request_count" db:"request_count"`
	ResetDate    time.Time `json:"reset_date" db:"reset_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
