package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/mocks"
	"github.com/jiweiyuan/muse/internal/service"
	"github.com/jiweiyuan/muse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServiceFixture(t *testing.T) (service.TaskService, *mocks.InMemoryTaskStore, *mocks.MockProjectStore, *domain.Project) {
	t.Helper()

	taskStore := mocks.NewInMemoryTaskStore(0)
	projectStore := &mocks.MockProjectStore{}

	project, err := domain.NewProject(uuid.New(), "moodboard")
	require.NoError(t, err)
	projectStore.Seed(project)

	svc, err := service.NewTaskService(taskStore, projectStore, nil)
	require.NoError(t, err)

	return svc, taskStore, projectStore, project
}

func imageBody(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(domain.GenerateImageBody{Prompt: "a fox in the snow"})
	require.NoError(t, err)
	return raw
}

func TestNewTaskService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := service.NewTaskService(nil, &mocks.MockProjectStore{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = service.NewTaskService(mocks.NewInMemoryTaskStore(0), nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskService_CreateTask(t *testing.T) {
	t.Parallel()

	svc, taskStore, _, project := newServiceFixture(t)

	shapeID := uuid.New()
	created, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		ShapeID:   &shapeID,
		Type:      domain.TaskTypeGenerateImage,
		Body:      imageBody(t),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, created.Status)
	assert.Equal(t, domain.DefaultMaxRetries, created.MaxRetries)
	require.NotNil(t, created.ShapeID)
	assert.Equal(t, shapeID, *created.ShapeID)

	persisted := taskStore.Snapshot(created.ID)
	require.NotNil(t, persisted)
	assert.Equal(t, domain.TaskStatusPending, persisted.Status)
}

func TestTaskService_CreateTask_RejectsInvalidBody(t *testing.T) {
	t.Parallel()

	svc, _, _, project := newServiceFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing prompt", body: `{}`},
		{name: "unknown field", body: `{"prompt": "x", "negative_prompt": "y"}`},
		{name: "out of range width", body: `{"prompt": "x", "width": 16}`},
		{name: "not JSON", body: `prompt`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
				OwnerID:   project.OwnerID,
				ProjectID: project.ID,
				Type:      domain.TaskTypeGenerateImage,
				Body:      json.RawMessage(tc.body),
			})
			assert.ErrorIs(t, err, domain.ErrInvalidTaskBody)
		})
	}
}

func TestTaskService_CreateTask_RejectsUnknownType(t *testing.T) {
	t.Parallel()

	svc, _, _, project := newServiceFixture(t)

	_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Type:      domain.TaskType("compose_symphony"),
		Body:      imageBody(t),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskService_CreateTask_EnforcesProjectOwnership(t *testing.T) {
	t.Parallel()

	svc, _, _, project := newServiceFixture(t)

	t.Run("foreign project", func(t *testing.T) {
		t.Parallel()

		_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
			OwnerID:   uuid.New(),
			ProjectID: project.ID,
			Type:      domain.TaskTypeGenerateImage,
			Body:      imageBody(t),
		})
		assert.ErrorIs(t, err, service.ErrNotOwned)
	})

	t.Run("missing project", func(t *testing.T) {
		t.Parallel()

		_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
			OwnerID:   project.OwnerID,
			ProjectID: uuid.New(),
			Type:      domain.TaskTypeGenerateImage,
			Body:      imageBody(t),
		})
		assert.ErrorIs(t, err, store.ErrProjectNotFound)
	})
}

func TestTaskService_GetTask_ScopedToOwner(t *testing.T) {
	t.Parallel()

	svc, _, _, project := newServiceFixture(t)

	created, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Type:      domain.TaskTypeGenerateImage,
		Body:      imageBody(t),
	})
	require.NoError(t, err)

	found, err := svc.GetTask(context.Background(), project.OwnerID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// A different owner sees not-found, never forbidden.
	_, err = svc.GetTask(context.Background(), uuid.New(), created.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskService_ListTasks_Filters(t *testing.T) {
	t.Parallel()

	svc, _, _, project := newServiceFixture(t)
	ctx := context.Background()

	image, err := svc.CreateTask(ctx, service.CreateTaskParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Type:      domain.TaskTypeGenerateImage,
		Body:      imageBody(t),
	})
	require.NoError(t, err)

	videoBody, err := json.Marshal(domain.GenerateVideoBody{Prompt: "clouds over a valley"})
	require.NoError(t, err)
	video, err := svc.CreateTask(ctx, service.CreateTaskParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Type:      domain.TaskTypeGenerateVideo,
		Body:      videoBody,
	})
	require.NoError(t, err)

	all, err := svc.ListTasks(ctx, service.ListTasksParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
	})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	videosOnly, err := svc.ListTasks(ctx, service.ListTasksParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Types:     []domain.TaskType{domain.TaskTypeGenerateVideo},
	})
	require.NoError(t, err)
	require.Len(t, videosOnly, 1)
	assert.Equal(t, video.ID, videosOnly[0].ID)

	pendingOnly, err := svc.ListTasks(ctx, service.ListTasksParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Statuses:  []domain.TaskStatus{domain.TaskStatusPending},
	})
	require.NoError(t, err)
	assert.Len(t, pendingOnly, 2)

	_ = image

	// Listing a foreign project is refused outright.
	_, err = svc.ListTasks(ctx, service.ListTasksParams{
		OwnerID:   uuid.New(),
		ProjectID: project.ID,
	})
	assert.ErrorIs(t, err, service.ErrNotOwned)
}

func TestTaskService_CancelTask(t *testing.T) {
	t.Parallel()

	svc, taskStore, _, project := newServiceFixture(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, service.CreateTaskParams{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Type:      domain.TaskTypeGenerateImage,
		Body:      imageBody(t),
	})
	require.NoError(t, err)

	t.Run("pending task cancels", func(t *testing.T) {
		require.NoError(t, svc.CancelTask(ctx, project.OwnerID, created.ID))
		assert.Nil(t, taskStore.Snapshot(created.ID))
	})

	t.Run("missing task yields not found", func(t *testing.T) {
		err := svc.CancelTask(ctx, project.OwnerID, uuid.New())
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("terminal task is not cancellable", func(t *testing.T) {
		done, err := svc.CreateTask(ctx, service.CreateTaskParams{
			OwnerID:   project.OwnerID,
			ProjectID: project.ID,
			Type:      domain.TaskTypeGenerateImage,
			Body:      imageBody(t),
		})
		require.NoError(t, err)

		status := domain.TaskStatusCompleted
		now := time.Now().UTC()
		_, err = taskStore.Update(ctx, done.ID, store.TaskUpdate{
			Status:      &status,
			CompletedAt: &now,
		})
		require.NoError(t, err)

		err = svc.CancelTask(ctx, project.OwnerID, done.ID)
		assert.ErrorIs(t, err, service.ErrTaskNotCancellable)
	})

	t.Run("foreign task yields not found", func(t *testing.T) {
		mine, err := svc.CreateTask(ctx, service.CreateTaskParams{
			OwnerID:   project.OwnerID,
			ProjectID: project.ID,
			Type:      domain.TaskTypeGenerateImage,
			Body:      imageBody(t),
		})
		require.NoError(t, err)

		err = svc.CancelTask(ctx, uuid.New(), mine.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.NotNil(t, taskStore.Snapshot(mine.ID), "foreign cancel must not delete the task")
	})
}

func TestTaskService_Stats(t *testing.T) {
	t.Parallel()

	svc, _, _, project := newServiceFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTask(ctx, service.CreateTaskParams{
			OwnerID:   project.OwnerID,
			ProjectID: project.ID,
			Type:      domain.TaskTypeGenerateImage,
			Body:      imageBody(t),
		})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats[domain.TaskStatusPending])
}
