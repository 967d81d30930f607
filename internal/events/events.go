package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
)

// Event type identifiers for task lifecycle events.
const (
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// TaskEvent is emitted by the worker when a task reaches a terminal state.
// The canvas layer subscribes to update the shape a task was created for;
// the event deliberately carries the shape ID so subscribers need no task
// lookup of their own.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Event* constants above
	Type string `json:"type"`

	TaskID    uuid.UUID       `json:"task_id"`
	TaskType  domain.TaskType `json:"task_type"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	ShapeID   *uuid.UUID      `json:"shape_id,omitempty"`

	// Result is the terminal task result (asset reference on success,
	// error details on failure).
	Result *domain.TaskResult `json:"result,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent builds a lifecycle event from a terminal task.
func NewTaskEvent(eventType string, task *domain.Task) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    task.ID,
		TaskType:  task.Type,
		OwnerID:   task.OwnerID,
		ProjectID: task.ProjectID,
		ShapeID:   task.ShapeID,
		Result:    task.Result,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the worker to publish lifecycle events without direct
// knowledge of subscribers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
