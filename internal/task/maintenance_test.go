package task_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/mocks"
	"github.com/jiweiyuan/muse/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedProcessing builds a processing task claimed at the given time.
func seedProcessing(t *testing.T, claimedAt time.Time, retryCount, maxRetries int) *domain.Task {
	t.Helper()

	created := newTestTask(t, domain.TaskTypeGenerateImage, maxRetries)
	created.Status = domain.TaskStatusProcessing
	workerID := "worker-gone"
	created.WorkerID = &workerID
	created.ClaimedAt = &claimedAt
	created.RetryCount = retryCount
	return created
}

func TestMaintenance_ReclaimsStaleProcessingTasks(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(50 * time.Millisecond)

	longAgo := time.Now().UTC().Add(-time.Minute)
	stale := seedProcessing(t, longAgo, 0, 3)
	exhausted := seedProcessing(t, longAgo, 3, 3)
	fresh := seedProcessing(t, time.Now().UTC(), 0, 3)
	taskStore.Seed(stale, exhausted, fresh)

	maintenance := task.NewMaintenance(taskStore, task.MaintenanceConfig{
		ReclaimInterval: 20 * time.Millisecond,
		ArchiveInterval: time.Hour,
		ArchiveAfter:    time.Hour,
	}, slog.Default())
	maintenance.Start()
	defer maintenance.Stop()

	requeued := waitForStatus(t, taskStore, stale.ID, domain.TaskStatusPending)
	assert.Equal(t, 1, requeued.RetryCount, "stale reclaim costs a retry")
	assert.Nil(t, requeued.WorkerID)
	assert.Nil(t, requeued.ClaimedAt)

	failed := waitForStatus(t, taskStore, exhausted.ID, domain.TaskStatusFailed)
	require.NotNil(t, failed.Result)
	assert.Equal(t, "stale_claim", failed.Result.ErrorCode)
	assert.NotNil(t, failed.CompletedAt)

	// A live claim stays untouched.
	snap := taskStore.Snapshot(fresh.ID)
	require.NotNil(t, snap)
	assert.Equal(t, domain.TaskStatusProcessing, snap.Status)
	assert.NotNil(t, snap.WorkerID)
}

func TestMaintenance_ArchivesOldTerminalTasks(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(0)

	oldCompleted := newTestTask(t, domain.TaskTypeGenerateImage, 0)
	oldCompleted.Status = domain.TaskStatusCompleted
	twoHoursAgo := time.Now().UTC().Add(-2 * time.Hour)
	oldCompleted.CompletedAt = &twoHoursAgo

	recentFailed := newTestTask(t, domain.TaskTypeGenerateVideo, 0)
	recentFailed.Status = domain.TaskStatusFailed
	justNow := time.Now().UTC()
	recentFailed.CompletedAt = &justNow

	pending := newTestTask(t, domain.TaskTypeImageUpscale, 0)

	taskStore.Seed(oldCompleted, recentFailed, pending)

	maintenance := task.NewMaintenance(taskStore, task.MaintenanceConfig{
		ReclaimInterval: time.Hour,
		ArchiveInterval: 20 * time.Millisecond,
		ArchiveAfter:    time.Hour,
	}, slog.Default())
	maintenance.Start()
	defer maintenance.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if taskStore.Snapshot(oldCompleted.ID) == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Nil(t, taskStore.Snapshot(oldCompleted.ID), "old terminal task should be archived")
	assert.NotNil(t, taskStore.Snapshot(recentFailed.ID), "recent terminal task stays within retention")
	assert.NotNil(t, taskStore.Snapshot(pending.ID), "non-terminal tasks are never archived")
}

func TestMaintenance_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(0)
	maintenance := task.NewMaintenance(taskStore, task.DefaultMaintenanceConfig(), slog.Default())

	maintenance.Start()
	maintenance.Start()
	maintenance.Stop()
	maintenance.Stop()
}

func TestCleanupStale_DirectSweep(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(time.Millisecond)

	longAgo := time.Now().UTC().Add(-time.Second)
	a := seedProcessing(t, longAgo, 0, 3)
	b := seedProcessing(t, longAgo, 5, 3)
	taskStore.Seed(a, b)

	affected, err := taskStore.CleanupStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	stats, err := taskStore.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[domain.TaskStatusPending])
	assert.EqualValues(t, 1, stats[domain.TaskStatusFailed])
}

// uuidSet is a tiny helper for the claim race below.
func uuidSet(tasks []*domain.Task) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(tasks))
	for _, t := range tasks {
		set[t.ID] = true
	}
	return set
}
