package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/platform/logger"
	"github.com/jiweiyuan/muse/internal/store"
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
func NewTaskServiceError(operation, message string, err error) *TaskServiceError {
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// CreateTaskParams carries the caller-supplied inputs for task creation.
type CreateTaskParams struct {
	OwnerID   uuid.UUID
	ProjectID uuid.UUID
	ShapeID   *uuid.UUID
	Type      domain.TaskType
	Body      json.RawMessage
	// MaxRetries overrides the default retry budget when positive.
	MaxRetries int
}

// ListTasksParams narrows a task listing.
type ListTasksParams struct {
	OwnerID   uuid.UUID
	ProjectID uuid.UUID
	Types     []domain.TaskType
	Statuses  []domain.TaskStatus
	Limit     int
	Offset    int
}

// TaskService provides task-related operations scoped to an authenticated
// owner. Every operation enforces ownership: a task or project belonging to
// someone else behaves exactly like one that does not exist, except project
// mismatches on create which surface as ErrNotOwned.
type TaskService interface {
	// CreateTask validates the body against the task type's schema, checks
	// the target project belongs to the owner, and enqueues the task.
	CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error)

	// GetTask retrieves one task scoped to the owner.
	GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error)

	// ListTasks retrieves the owner's tasks in a project, newest first.
	ListTasks(ctx context.Context, params ListTasksParams) ([]*domain.Task, error)

	// CancelTask removes a pending or processing task. Returns
	// store.ErrTaskNotFound when the task is absent or foreign, and
	// ErrTaskNotCancellable when it has already reached a terminal state.
	CancelTask(ctx context.Context, ownerID, taskID uuid.UUID) error

	// Stats returns queue depth per status for the health boundary.
	Stats(ctx context.Context) (map[domain.TaskStatus]int64, error)
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	taskStore    store.TaskStore
	projectStore store.ProjectStore
	logger       *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	taskStore store.TaskStore,
	projectStore store.ProjectStore,
	log *slog.Logger,
) (TaskService, error) {
	if taskStore == nil {
		return nil, fmt.Errorf("taskStore cannot be nil: %w", domain.ErrValidation)
	}
	if projectStore == nil {
		return nil, fmt.Errorf("projectStore cannot be nil: %w", domain.ErrValidation)
	}
	if log == nil {
		log = slog.Default()
	}

	return &taskServiceImpl{
		taskStore:    taskStore,
		projectStore: projectStore,
		logger:       log.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask implements TaskService.CreateTask.
func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !domain.IsValidTaskType(params.Type) {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, params.Type)
	}

	if err := domain.ValidateTaskBody(params.Type, params.Body); err != nil {
		return nil, err
	}

	if err := s.authorizeProject(ctx, params.OwnerID, params.ProjectID); err != nil {
		return nil, err
	}

	created, err := domain.NewTask(
		params.Type, params.OwnerID, params.ProjectID, params.ShapeID,
		params.Body, params.MaxRetries)
	if err != nil {
		return nil, err
	}

	if err := s.taskStore.Create(ctx, created); err != nil {
		log.Error("failed to create task",
			"task_type", params.Type,
			"project_id", params.ProjectID,
			"error", err)
		return nil, NewTaskServiceError("create", "failed to save task", err)
	}

	log.Info("task created",
		"task_id", created.ID,
		"task_type", created.Type,
		"project_id", created.ProjectID)

	return created, nil
}

// GetTask implements TaskService.GetTask.
func (s *taskServiceImpl) GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*domain.Task, error) {
	found, err := s.taskStore.GetByID(ctx, taskID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, err
		}
		return nil, NewTaskServiceError("get", "failed to load task", err)
	}
	return found, nil
}

// ListTasks implements TaskService.ListTasks.
func (s *taskServiceImpl) ListTasks(ctx context.Context, params ListTasksParams) ([]*domain.Task, error) {
	if err := s.authorizeProject(ctx, params.OwnerID, params.ProjectID); err != nil {
		return nil, err
	}

	tasks, err := s.taskStore.List(ctx, store.TaskFilter{
		OwnerID:   params.OwnerID,
		ProjectID: params.ProjectID,
		Types:     params.Types,
		Statuses:  params.Statuses,
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		return nil, NewTaskServiceError("list", "failed to list tasks", err)
	}

	return tasks, nil
}

// CancelTask implements TaskService.CancelTask.
func (s *taskServiceImpl) CancelTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cancelled, err := s.taskStore.Cancel(ctx, taskID, ownerID)
	if err != nil {
		return NewTaskServiceError("cancel", "failed to cancel task", err)
	}
	if cancelled {
		log.Info("task cancelled", "task_id", taskID)
		return nil
	}

	// Distinguish "not found or foreign" from "already terminal" for the
	// caller; both decline the cancellation.
	existing, err := s.taskStore.GetByID(ctx, taskID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return store.ErrTaskNotFound
		}
		return NewTaskServiceError("cancel", "failed to load task", err)
	}

	return fmt.Errorf("%w: task is %s", ErrTaskNotCancellable, existing.Status)
}

// Stats implements TaskService.Stats.
func (s *taskServiceImpl) Stats(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	stats, err := s.taskStore.Stats(ctx)
	if err != nil {
		return nil, NewTaskServiceError("stats", "failed to load task stats", err)
	}
	return stats, nil
}

// authorizeProject checks the project exists and belongs to the owner.
// A missing project surfaces as store.ErrProjectNotFound; a foreign one as
// ErrNotOwned.
func (s *taskServiceImpl) authorizeProject(ctx context.Context, ownerID, projectID uuid.UUID) error {
	project, err := s.projectStore.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return err
		}
		return NewTaskServiceError("authorize", "failed to load project", err)
	}

	if project.OwnerID != ownerID {
		return ErrNotOwned
	}

	return nil
}
