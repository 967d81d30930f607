package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a generation task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskType identifies the generation operation a task performs.
// The set is closed: every type has exactly one handler registered
// in the worker's dispatch table.
type TaskType string

// Possible task type values
const (
	TaskTypeGenerateImage    TaskType = "generate_image"
	TaskTypeGenerateVideo    TaskType = "generate_video"
	TaskTypeImageUpscale     TaskType = "image_upscale"
	TaskTypeRemoveBackground TaskType = "image_remove_background"
)

// AllTaskTypes lists every valid task type. The worker uses this to
// verify at startup that its handler registry is complete.
var AllTaskTypes = []TaskType{
	TaskTypeGenerateImage,
	TaskTypeGenerateVideo,
	TaskTypeImageUpscale,
	TaskTypeRemoveBackground,
}

// DefaultMaxRetries is the retry budget applied when a task is created
// without an explicit override.
const DefaultMaxRetries = 3

// Common validation errors for Task
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwnerID   = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskProjectID = errors.New("task project ID cannot be empty")
	ErrEmptyTaskBody      = errors.New("task body cannot be empty")
	ErrInvalidTaskType    = errors.New("invalid task type")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrNegativeRetries    = errors.New("retry counts cannot be negative")
)

// Task represents a single unit of generative work: an image or video
// generation, an upscale, or a background removal. It is created pending,
// claimed exclusively by one worker, and ends completed or failed.
type Task struct {
	ID        uuid.UUID       `json:"id"`
	Type      TaskType        `json:"task_type"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	ShapeID   *uuid.UUID      `json:"shape_id,omitempty"`
	Body      json.RawMessage `json:"body"`
	Status    TaskStatus      `json:"status"`
	Result    *TaskResult     `json:"result,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// WorkerID and ClaimedAt are both nil unless exactly one worker
	// currently holds the task.
	WorkerID  *string    `json:"worker_id,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskResult holds the outcome of a finished task. On success the asset
// fields are populated; on failure the error fields are.
type TaskResult struct {
	AssetID     string `json:"asset_id,omitempty"`
	AssetURL    string `json:"asset_url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	ETag        string `json:"etag,omitempty"`

	Width           int `json:"width,omitempty"`
	Height          int `json:"height,omitempty"`
	DurationSeconds int `json:"duration_seconds,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
}

// NewTask creates a new pending Task for the given owner, project, and
// per-type body. A nil shapeID is allowed; maxRetries <= 0 selects the
// default budget. Returns an error if validation fails.
func NewTask(
	taskType TaskType,
	ownerID, projectID uuid.UUID,
	shapeID *uuid.UUID,
	body json.RawMessage,
	maxRetries int,
) (*Task, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	now := time.Now().UTC()
	task := &Task{
		ID:         uuid.New(),
		Type:       taskType,
		OwnerID:    ownerID,
		ProjectID:  projectID,
		ShapeID:    shapeID,
		Body:       body,
		Status:     TaskStatusPending,
		RetryCount: 0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyTaskOwnerID
	}

	if t.ProjectID == uuid.Nil {
		return ErrEmptyTaskProjectID
	}

	if len(t.Body) == 0 {
		return ErrEmptyTaskBody
	}

	if !IsValidTaskType(t.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskType, t.Type)
	}

	if !isValidTaskStatus(t.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, t.Status)
	}

	if t.RetryCount < 0 || t.MaxRetries < 0 {
		return ErrNegativeRetries
	}

	return nil
}

// IsTerminal reports whether the task has reached a terminal state.
// Terminal tasks are only removed by archival or cancellation.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// RetriesExhausted reports whether the retry budget has been spent.
func (t *Task) RetriesExhausted() bool {
	return t.RetryCount >= t.MaxRetries
}

// IsValidTaskType checks if the given type is a member of the closed
// task type set.
func IsValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeGenerateImage, TaskTypeGenerateVideo,
		TaskTypeImageUpscale, TaskTypeRemoveBackground:
		return true
	default:
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// ParseTaskStatus converts a wire-format status string to a TaskStatus.
// Returns an error for unknown values.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !isValidTaskStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskStatus, s)
	}
	return status, nil
}
