package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
)

// TaskFilter narrows List results. OwnerID and ProjectID are required;
// Types and Statuses are optional (empty means any). Results are ordered
// newest first and paginated by Limit/Offset.
type TaskFilter struct {
	OwnerID   uuid.UUID
	ProjectID uuid.UUID
	Types     []domain.TaskType
	Statuses  []domain.TaskStatus
	Limit     int
	Offset    int
}

// TaskUpdate describes a partial update to a task row. Nil fields are left
// untouched. ClearClaim additionally nulls worker_id and claimed_at, which
// a nil pointer field cannot express.
type TaskUpdate struct {
	Status      *domain.TaskStatus
	Result      *domain.TaskResult
	RetryCount  *int
	CompletedAt *time.Time
	ClearClaim  bool
}

// TaskStore defines the interface for task persistence, including the
// atomic batch-claim primitive the worker pool depends on.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store with status pending.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID, scoped to the given owner.
	// Returns ErrTaskNotFound if the task does not exist or belongs to
	// another owner; the two cases are indistinguishable.
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error)

	// List retrieves tasks matching the filter, newest first.
	// Returns an empty slice if nothing matches.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Update applies a partial update to a task and bumps updated_at.
	// Returns the updated task, or ErrTaskNotFound if the row is gone
	// (for example after cancellation).
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// Claim atomically transitions up to limit claimable tasks to
	// processing, stamping workerID, claimed_at, and started_at.
	// A task is claimable when pending, or when processing with a
	// claimed_at older than the store's staleness threshold. Rows locked
	// by a concurrent claimer are skipped, never waited on: under
	// contention each task goes to at most one caller and callers simply
	// receive fewer rows.
	Claim(ctx context.Context, workerID string, limit int) ([]*domain.Task, error)

	// Cancel deletes the task if it belongs to the owner and is still
	// pending or processing. Returns false, not an error, when the task
	// is absent, foreign, or already terminal.
	Cancel(ctx context.Context, id, ownerID uuid.UUID) (bool, error)

	// CleanupStale resets tasks stuck in processing past the staleness
	// threshold back to pending, clearing their claim fields. Tasks whose
	// retry budget is exhausted are not revived. Returns the number of
	// rows reset.
	CleanupStale(ctx context.Context) (int64, error)

	// ArchiveTerminal permanently deletes completed and failed tasks whose
	// completed_at precedes the retention window. Returns the number of
	// rows deleted.
	ArchiveTerminal(ctx context.Context, olderThan time.Duration) (int64, error)

	// Stats returns the number of tasks in each status.
	Stats(ctx context.Context) (map[domain.TaskStatus]int64, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
