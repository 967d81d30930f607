// Package api contains the HTTP boundary: request/response DTOs, handlers
// for the task and project endpoints, middleware, and the mapping from
// internal errors to status codes. Handlers stay thin; ownership checks and
// body validation live in the service layer.
package api
