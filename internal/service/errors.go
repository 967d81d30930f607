// Package service provides application-level services for managing tasks
// and projects.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check for these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request. API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrInvalidStatusFilter indicates a list request carried a status value
	// outside the task state machine. API layer should map this to HTTP 400.
	ErrInvalidStatusFilter = errors.New("invalid status filter")

	// ErrTaskNotCancellable indicates a cancel request hit a task that has
	// already reached a terminal state. API layer should map this to HTTP 409.
	ErrTaskNotCancellable = errors.New("task is not cancellable")
)
