package api

import (
	"encoding/json"
	"time"

	"github.com/jiweiyuan/muse/internal/domain"
)

// Common request/response structures

// CreateTaskRequest defines the payload for the task creation endpoint.
// Body is the type-specific payload, validated against the task type's
// schema by the service layer.
type CreateTaskRequest struct {
	Type      string          `json:"type"                  validate:"required"`
	ProjectID string          `json:"project_id"            validate:"required,uuid"`
	ShapeID   string          `json:"shape_id,omitempty"    validate:"omitempty,uuid"`
	Body      json.RawMessage `json:"body"                  validate:"required"`
	// MaxRetries overrides the default retry budget when positive.
	MaxRetries int `json:"max_retries,omitempty" validate:"omitempty,min=1,max=10"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	ProjectID   string             `json:"project_id"`
	ShapeID     *string            `json:"shape_id,omitempty"`
	Status      string             `json:"status"`
	Result      *domain.TaskResult `json:"result,omitempty"`
	RetryCount  int                `json:"retry_count"`
	MaxRetries  int                `json:"max_retries"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID.String(),
		Type:        string(t.Type),
		ProjectID:   t.ProjectID.String(),
		Status:      string(t.Status),
		Result:      t.Result,
		RetryCount:  t.RetryCount,
		MaxRetries:  t.MaxRetries,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.ShapeID != nil {
		shapeID := t.ShapeID.String()
		resp.ShapeID = &shapeID
	}
	return resp
}

// CreateProjectRequest defines the payload for the project creation endpoint.
type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// ProjectResponse represents the response data for a project.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// projectToResponse converts a domain.Project to a ProjectResponse.
func projectToResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// HealthResponse reports service liveness plus queue and worker state.
type HealthResponse struct {
	Status string           `json:"status"`
	Worker WorkerStatusBody `json:"worker"`
	Queue  map[string]int64 `json:"queue"`
}

// WorkerStatusBody is the worker snapshot embedded in HealthResponse.
type WorkerStatusBody struct {
	WorkerID      string `json:"worker_id"`
	Running       bool   `json:"running"`
	InFlight      int    `json:"in_flight"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
