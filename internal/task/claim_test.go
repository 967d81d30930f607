package task_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClaim_AtMostOnceUnderContention hammers the claim primitive from many
// goroutines and verifies no task is ever handed to two claimers.
func TestClaim_AtMostOnceUnderContention(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(0)

	const totalTasks = 40
	for i := 0; i < totalTasks; i++ {
		taskStore.Seed(newTestTask(t, domain.TaskTypeGenerateImage, 0))
	}

	const claimers = 8
	var wg sync.WaitGroup
	claimedBy := make([]map[uuid.UUID]bool, claimers)

	for i := 0; i < claimers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			mine := make(map[uuid.UUID]bool)
			for {
				claimed, err := taskStore.Claim(context.Background(), "worker", 3)
				require.NoError(t, err)
				if len(claimed) == 0 {
					break
				}
				for id := range uuidSet(claimed) {
					mine[id] = true
				}
			}
			claimedBy[i] = mine
		}()
	}
	wg.Wait()

	seen := make(map[uuid.UUID]int)
	for _, mine := range claimedBy {
		for id := range mine {
			seen[id]++
		}
	}

	assert.Len(t, seen, totalTasks, "every task should be claimed")
	for id, count := range seen {
		assert.Equal(t, 1, count, "task %s claimed %d times", id, count)
	}
}

// TestClaim_OldestFirst verifies claim ordering follows creation time.
func TestClaim_OldestFirst(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(0)

	oldest := newTestTask(t, domain.TaskTypeGenerateImage, 0)
	oldest.CreatedAt = time.Now().UTC().Add(-time.Hour)
	middle := newTestTask(t, domain.TaskTypeGenerateImage, 0)
	middle.CreatedAt = time.Now().UTC().Add(-time.Minute)
	newest := newTestTask(t, domain.TaskTypeGenerateImage, 0)

	taskStore.Seed(newest, oldest, middle)

	claimed, err := taskStore.Claim(context.Background(), "worker", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, oldest.ID, claimed[0].ID)
	assert.Equal(t, middle.ID, claimed[1].ID)

	// The claimed rows carry the claim stamps.
	for _, c := range claimed {
		assert.Equal(t, domain.TaskStatusProcessing, c.Status)
		require.NotNil(t, c.WorkerID)
		assert.Equal(t, "worker", *c.WorkerID)
		assert.NotNil(t, c.ClaimedAt)
		assert.NotNil(t, c.StartedAt)
	}
}

// TestClaim_ReclaimsStaleProcessing verifies an expired processing claim is
// claimable again by another worker.
func TestClaim_ReclaimsStaleProcessing(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewInMemoryTaskStore(10 * time.Millisecond)

	stale := seedProcessing(t, time.Now().UTC().Add(-time.Minute), 1, 3)
	taskStore.Seed(stale)

	claimed, err := taskStore.Claim(context.Background(), "worker-new", 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, stale.ID, claimed[0].ID)
	require.NotNil(t, claimed[0].WorkerID)
	assert.Equal(t, "worker-new", *claimed[0].WorkerID)
}
