package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiweiyuan/muse/internal/domain"
)

// MockEventHandler implements the EventHandler interface for testing.
// Handlers are invoked concurrently, so state is mutex-protected.
type MockEventHandler struct {
	mu           sync.Mutex
	HandledCount int
	LastEvent    *TaskEvent
	HandlerError error
}

func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.HandledCount++
	h.LastEvent = event
	return h.HandlerError
}

func (h *MockEventHandler) handled() (int, *TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.HandledCount, h.LastEvent
}

func newCompletedTask(t *testing.T) *domain.Task {
	t.Helper()
	body, err := json.Marshal(map[string]any{"prompt": "a fox in watercolor"})
	require.NoError(t, err)

	task, err := domain.NewTask(domain.TaskTypeGenerateImage, uuid.New(), uuid.New(), nil, body, 0)
	require.NoError(t, err)

	task.Status = domain.TaskStatusCompleted
	task.Result = &domain.TaskResult{AssetID: "projects/p/generated/t.png", Attempts: 1}
	return task
}

func TestNewTaskEvent(t *testing.T) {
	task := newCompletedTask(t)

	event := NewTaskEvent(EventTaskCompleted, task)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventTaskCompleted, event.Type)
	assert.Equal(t, task.ID, event.TaskID)
	assert.Equal(t, task.Type, event.TaskType)
	assert.Equal(t, task.OwnerID, event.OwnerID)
	assert.Equal(t, task.ProjectID, event.ProjectID)
	assert.Equal(t, task.Result, event.Result)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)
}

func TestInMemoryEventEmitter(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event := NewTaskEvent(EventTaskCompleted, newCompletedTask(t))

		// Should not error even with no handlers
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewTaskEvent(EventTaskCompleted, newCompletedTask(t))
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		// Verify both handlers received the event
		count1, last1 := handler1.handled()
		count2, last2 := handler2.handled()
		assert.Equal(t, 1, count1)
		assert.Equal(t, 1, count2)
		assert.Equal(t, event, last1)
		assert.Equal(t, event, last2)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{
			HandlerError: errors.New("handler error"),
		}
		emitter.RegisterHandler(successHandler)
		emitter.RegisterHandler(failingHandler)

		event := NewTaskEvent(EventTaskFailed, newCompletedTask(t))

		// The failing handler's error surfaces, but delivery to the other
		// handler is unaffected.
		err := emitter.EmitEvent(context.Background(), event)
		assert.Error(t, err)
		assert.Equal(t, "handler error", err.Error())

		count1, _ := successHandler.handled()
		count2, _ := failingHandler.handled()
		assert.Equal(t, 1, count1)
		assert.Equal(t, 1, count2)
	})
}
