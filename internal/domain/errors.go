package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrKeyQuota      = errors.New("API key limit reached")
)

// APIError represents an error response from the management API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// DataAPIError is the error body shape of the public data API.
// Third-party integrators rely on status code + this body to tell
// "no such endpoint" from "access denied" from "rate limited".
type DataAPIError struct {
	Error string `json:"error"`
}
