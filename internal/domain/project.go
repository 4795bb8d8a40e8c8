package domain

import "time"

// Project is a namespace owning zero or more endpoints and a protection
// policy. When APIProtection is set, every request to a child endpoint
// must carry a valid API key.
type Project struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	Slug          string    `json:"slug" db:"slug"`
	APIProtection bool      `json:"api_protection" db:"api_protection"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
