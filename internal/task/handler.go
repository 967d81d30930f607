package task

import (
	"context"
	"fmt"

	"github.com/jiweiyuan/muse/internal/domain"
)

// Handler executes one task type. The set of handlers is closed: the worker
// refuses to start unless every domain.TaskType has exactly one handler, so
// an unhandled type is a construction-time error rather than a runtime one.
type Handler interface {
	// Type returns the task type this handler executes.
	Type() domain.TaskType

	// Execute runs the task to completion and returns its result.
	// Errors wrapping generation.ErrTransientFailure are retried while the
	// task has budget left; all other errors fail the task permanently.
	Execute(ctx context.Context, task *domain.Task) (*domain.TaskResult, error)
}

// Registry maps task types to their handlers.
type Registry map[domain.TaskType]Handler

// NewRegistry builds a Registry from the given handlers, rejecting
// duplicates and gaps against the closed task type set.
func NewRegistry(handlers ...Handler) (Registry, error) {
	registry := make(Registry, len(handlers))

	for _, h := range handlers {
		if !domain.IsValidTaskType(h.Type()) {
			return nil, fmt.Errorf("handler registered for unknown task type %q", h.Type())
		}
		if _, exists := registry[h.Type()]; exists {
			return nil, fmt.Errorf("duplicate handler for task type %q", h.Type())
		}
		registry[h.Type()] = h
	}

	for _, taskType := range domain.AllTaskTypes {
		if _, ok := registry[taskType]; !ok {
			return nil, fmt.Errorf("no handler registered for task type %q", taskType)
		}
	}

	return registry, nil
}
