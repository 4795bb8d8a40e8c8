package domain

import "time"

// Endpoint is a named, schema-less collection exposed as a REST resource.
// Data holds the entire collection and is stored and rewritten as one unit;
// there is no per-record storage. RecordCount equals len(Data) after every
// successful mutation.
type Endpoint struct {
	ID          string    `json:"id" db:"id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Slug        string    `json:"slug" db:"slug"`
	FileName    string    `json:"file_name" db:"file_name"`
	FileType    string    `json:"file_type" db:"file_type"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	RecordCount int       `json:"record_count" db:"record_count"`
	Data        []Record  `json:"json_data,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// Project is the parent's summary, populated by slug-pair lookups.
	Project *Project `json:"project,omitempty" db:"-"`
}

// CreateEndpointRequest is the request body for creating an endpoint.
// Data is the already-converted spreadsheet content; records without an id
// get one stamped at ingest.
type CreateEndpointRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	FileName    string   `json:"file_name"`
	FileType    string   `json:"file_type"`
	Data        []Record `json:"json_data"`
}
