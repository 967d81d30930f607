package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/store"
)

// InMemoryTaskStore is a mutex-guarded store.TaskStore backed by a map.
// Claim follows the production rules: oldest-first, pending or
// stale-processing rows only, each row handed to at most one caller. That
// makes it safe to hammer from concurrent workers in tests.
type InMemoryTaskStore struct {
	mu         sync.Mutex
	tasks      map[uuid.UUID]*domain.Task
	staleAfter time.Duration

	// Fn overrides, applied before the in-memory behavior when set.
	ClaimFn  func(ctx context.Context, workerID string, limit int) ([]*domain.Task, error)
	UpdateFn func(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error)

	// ClaimCalls counts Claim invocations, override or not.
	ClaimCalls int
}

// NewInMemoryTaskStore creates an empty in-memory task store.
// staleAfter mirrors the production staleness threshold; zero disables
// stale reclaim entirely, which most tests want.
func NewInMemoryTaskStore(staleAfter time.Duration) *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:      make(map[uuid.UUID]*domain.Task),
		staleAfter: staleAfter,
	}
}

// Seed inserts tasks directly, bypassing validation, for test setup.
func (s *InMemoryTaskStore) Seed(tasks ...*domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		copied := *t
		s.tasks[t.ID] = &copied
	}
}

// Snapshot returns a copy of the task with the given ID, or nil.
func (s *InMemoryTaskStore) Snapshot(id uuid.UUID) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	copied := *t
	return &copied
}

// Create saves a new task.
func (s *InMemoryTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}

	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// GetByID retrieves a task scoped to the owner.
func (s *InMemoryTaskStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

// List retrieves tasks matching the filter, newest first.
func (s *InMemoryTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*domain.Task{}
	for _, t := range s.tasks {
		if t.OwnerID != filter.OwnerID || t.ProjectID != filter.ProjectID {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, t.Type) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		copied := *t
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(matched) {
		return []*domain.Task{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// Update applies a partial update.
func (s *InMemoryTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, id, update)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Result != nil {
		result := *update.Result
		t.Result = &result
	}
	if update.RetryCount != nil {
		t.RetryCount = *update.RetryCount
	}
	if update.CompletedAt != nil {
		completedAt := *update.CompletedAt
		t.CompletedAt = &completedAt
	}
	if update.ClearClaim {
		t.WorkerID = nil
		t.ClaimedAt = nil
	}
	t.UpdatedAt = time.Now().UTC()

	copied := *t
	return &copied, nil
}

// Claim atomically hands out up to limit claimable tasks, oldest first.
func (s *InMemoryTaskStore) Claim(ctx context.Context, workerID string, limit int) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ClaimCalls++

	if s.ClaimFn != nil {
		return s.ClaimFn(ctx, workerID, limit)
	}

	if limit <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()

	claimable := []*domain.Task{}
	for _, t := range s.tasks {
		switch {
		case t.Status == domain.TaskStatusPending:
			claimable = append(claimable, t)
		case t.Status == domain.TaskStatusProcessing &&
			s.staleAfter > 0 &&
			t.ClaimedAt != nil &&
			now.Sub(*t.ClaimedAt) > s.staleAfter:
			claimable = append(claimable, t)
		}
	}

	sort.Slice(claimable, func(i, j int) bool {
		return claimable[i].CreatedAt.Before(claimable[j].CreatedAt)
	})
	if len(claimable) > limit {
		claimable = claimable[:limit]
	}

	claimed := make([]*domain.Task, 0, len(claimable))
	for _, t := range claimable {
		t.Status = domain.TaskStatusProcessing
		wid := workerID
		t.WorkerID = &wid
		claimedAt := now
		t.ClaimedAt = &claimedAt
		startedAt := now
		t.StartedAt = &startedAt
		t.UpdatedAt = now

		copied := *t
		claimed = append(claimed, &copied)
	}

	return claimed, nil
}

// Cancel deletes the task if owned and not terminal.
func (s *InMemoryTaskStore) Cancel(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsTerminal() {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

// CleanupStale applies the production stale-claim rules: exhausted tasks
// fail permanently, the rest return to pending with a bumped retry count.
func (s *InMemoryTaskStore) CleanupStale(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleAfter <= 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	var affected int64

	for _, t := range s.tasks {
		if t.Status != domain.TaskStatusProcessing ||
			t.ClaimedAt == nil ||
			now.Sub(*t.ClaimedAt) <= s.staleAfter {
			continue
		}

		t.WorkerID = nil
		t.ClaimedAt = nil
		t.UpdatedAt = now

		if t.RetryCount >= t.MaxRetries {
			t.Status = domain.TaskStatusFailed
			completedAt := now
			t.CompletedAt = &completedAt
			t.Result = &domain.TaskResult{
				ErrorCode:    "stale_claim",
				ErrorMessage: "task abandoned by worker and retry budget exhausted",
				Attempts:     t.RetryCount,
			}
		} else {
			t.Status = domain.TaskStatusPending
			t.RetryCount++
		}
		affected++
	}

	return affected, nil
}

// ArchiveTerminal deletes terminal tasks past the retention window.
func (s *InMemoryTaskStore) ArchiveTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var deleted int64

	for id, t := range s.tasks {
		if t.IsTerminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			deleted++
		}
	}

	return deleted, nil
}

// Stats returns the count of tasks per status.
func (s *InMemoryTaskStore) Stats(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[domain.TaskStatus]int64)
	for _, t := range s.tasks {
		stats[t.Status]++
	}
	return stats, nil
}

// WithTx returns the store itself; the in-memory store has no transactions.
func (s *InMemoryTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return s
}

func containsType(types []domain.TaskType, t domain.TaskType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.TaskStatus, st domain.TaskStatus) bool {
	for _, candidate := range statuses {
		if candidate == st {
			return true
		}
	}
	return false
}
