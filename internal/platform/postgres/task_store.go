package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/platform/logger"
	"github.com/jiweiyuan/muse/internal/store"
)

// taskColumns is the canonical column list for task queries; every scan
// goes through scanTask, which expects exactly this order.
const taskColumns = `id, task_type, owner_id, project_id, shape_id, body, status, result,
	retry_count, max_retries, worker_id, claimed_at,
	created_at, started_at, completed_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
//
// Claim relies on FOR UPDATE SKIP LOCKED: concurrent claimers never block on
// each other's rows, they simply see fewer claimable rows. That is the only
// cross-process synchronization the queue needs; all other task mutations are
// single-row writes by the claim holder.
type PostgresTaskStore struct {
	db         store.DBTX
	logger     *slog.Logger
	staleAfter time.Duration
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// staleAfter is the window after which a processing task's claim is presumed
// abandoned; it bounds execution time for crashed or hung workers.
func NewPostgresTaskStore(db store.DBTX, log *slog.Logger, staleAfter time.Duration) *PostgresTaskStore {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &PostgresTaskStore{
		db:         db,
		logger:     log,
		staleAfter: staleAfter,
	}
}

// WithTx returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:         tx,
		logger:     s.logger,
		staleAfter: s.staleAfter,
	}
}

// Create saves a new task to the database with status pending.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, task_type, owner_id, project_id, shape_id, body, status,
			retry_count, max_retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Type,
		task.OwnerID,
		task.ProjectID,
		task.ShapeID,
		[]byte(task.Body),
		task.Status,
		task.RetryCount,
		task.MaxRetries,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"task_type", task.Type,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a task by ID, scoped to the given owner. A task that
// exists but belongs to someone else yields the same ErrTaskNotFound as a
// missing one, so callers cannot probe for foreign tasks.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 AND owner_id = $2`, taskColumns)

	row := s.db.QueryRowContext(ctx, query, id, ownerID)
	task, err := scanTask(row)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// List retrieves tasks matching the filter, newest first.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		`SELECT %s FROM tasks WHERE owner_id = $1 AND project_id = $2`, taskColumns))

	args := []any{filter.OwnerID, filter.ProjectID}

	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			args = append(args, t)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		sb.WriteString(" AND task_type IN (" + strings.Join(placeholders, ", ") + ")")
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			args = append(args, st)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		sb.WriteString(" AND status IN (" + strings.Join(placeholders, ", ") + ")")
	}

	sb.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		log.Error("failed to list tasks",
			"owner_id", filter.OwnerID,
			"project_id", filter.ProjectID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

// Update applies a partial update to a task and bumps updated_at.
// Returns ErrTaskNotFound when the row no longer exists, which happens
// legitimately after cancellation; callers in the worker treat that as
// a no-op.
func (s *PostgresTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sets := []string{}
	args := []any{}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		appendSet("status", *update.Status)
	}
	if update.Result != nil {
		resultJSON, err := json.Marshal(update.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal task result: %w", err)
		}
		appendSet("result", resultJSON)
	}
	if update.RetryCount != nil {
		appendSet("retry_count", *update.RetryCount)
	}
	if update.CompletedAt != nil {
		appendSet("completed_at", *update.CompletedAt)
	}
	if update.ClearClaim {
		sets = append(sets, "worker_id = NULL", "claimed_at = NULL")
	}

	appendSet("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), taskColumns,
	)

	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			"task_id", id,
			"error", err)
		return nil, MapError(err)
	}

	return task, nil
}

// Claim atomically transitions up to limit claimable tasks to processing,
// stamping workerID, claimed_at, and started_at. Claimable rows are pending
// tasks plus processing tasks whose claim has gone stale. The inner SELECT
// uses FOR UPDATE SKIP LOCKED so rows mid-claim by another worker are
// skipped rather than waited on.
func (s *PostgresTaskStore) Claim(ctx context.Context, workerID string, limit int) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-s.staleAfter)

	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = $1, worker_id = $2, claimed_at = $3, started_at = $3, updated_at = $3
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = $4
			   OR (status = $1 AND claimed_at < $5)
			ORDER BY created_at ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query,
		domain.TaskStatusProcessing,
		workerID,
		now,
		domain.TaskStatusPending,
		staleBefore,
		limit,
	)
	if err != nil {
		log.Error("failed to claim tasks",
			"worker_id", workerID,
			"limit", limit,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return collectTasks(rows)
}

// Cancel deletes the task if it belongs to the owner and is still pending or
// processing. Returns false when the task is absent, foreign, or terminal;
// none of those are errors.
func (s *PostgresTaskStore) Cancel(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM tasks
		WHERE id = $1 AND owner_id = $2 AND status IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query,
		id, ownerID, domain.TaskStatusPending, domain.TaskStatusProcessing)
	if err != nil {
		log.Error("failed to cancel task",
			"task_id", id,
			"error", err)
		return false, MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// CleanupStale recovers tasks orphaned by crashed or hung workers. Stale
// processing tasks with remaining retry budget go back to pending with an
// incremented retry count and cleared claim fields; tasks whose budget is
// exhausted transition permanently to failed so they are never reclaimed
// again. Returns the total number of rows touched.
func (s *PostgresTaskStore) CleanupStale(ctx context.Context) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	staleBefore := now.Add(-s.staleAfter)

	failQuery := `
		UPDATE tasks
		SET status = $1,
			result = jsonb_build_object(
				'error_code', 'stale_claim',
				'error_message', 'task abandoned by worker and retry budget exhausted',
				'attempts', retry_count
			),
			worker_id = NULL, claimed_at = NULL, completed_at = $2, updated_at = $2
		WHERE status = $3 AND claimed_at < $4 AND retry_count >= max_retries
	`

	failResult, err := s.db.ExecContext(ctx, failQuery,
		domain.TaskStatusFailed, now, domain.TaskStatusProcessing, staleBefore)
	if err != nil {
		log.Error("failed to fail exhausted stale tasks", "error", err)
		return 0, MapError(err)
	}
	failed, err := failResult.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	resetQuery := `
		UPDATE tasks
		SET status = $1, worker_id = NULL, claimed_at = NULL,
			retry_count = retry_count + 1, updated_at = $2
		WHERE status = $3 AND claimed_at < $4
	`

	resetResult, err := s.db.ExecContext(ctx, resetQuery,
		domain.TaskStatusPending, now, domain.TaskStatusProcessing, staleBefore)
	if err != nil {
		log.Error("failed to reset stale tasks", "error", err)
		return failed, MapError(err)
	}
	reset, err := resetResult.RowsAffected()
	if err != nil {
		return failed, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if failed+reset > 0 {
		log.Info("cleaned up stale tasks",
			"reset_to_pending", reset,
			"failed_permanently", failed)
	}

	return failed + reset, nil
}

// ArchiveTerminal permanently deletes completed and failed tasks whose
// completed_at precedes the retention window.
func (s *PostgresTaskStore) ArchiveTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		DELETE FROM tasks
		WHERE status IN ($1, $2) AND completed_at IS NOT NULL AND completed_at < $3
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusCompleted, domain.TaskStatusFailed, cutoff)
	if err != nil {
		log.Error("failed to archive terminal tasks", "error", err)
		return 0, MapError(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if deleted > 0 {
		log.Info("archived terminal tasks", "count", deleted, "older_than", olderThan)
	}

	return deleted, nil
}

// Stats returns the number of tasks in each status.
func (s *PostgresTaskStore) Stats(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM tasks GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[domain.TaskStatus]int64)
	for rows.Next() {
		var status domain.TaskStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}

	return stats, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var shapeID sql.Null[uuid.UUID]
	var body []byte
	var resultJSON []byte
	var workerID sql.NullString
	var claimedAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.OwnerID,
		&task.ProjectID,
		&shapeID,
		&body,
		&task.Status,
		&resultJSON,
		&task.RetryCount,
		&task.MaxRetries,
		&workerID,
		&claimedAt,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Body = json.RawMessage(body)

	if shapeID.Valid {
		task.ShapeID = &shapeID.V
	}
	if len(resultJSON) > 0 {
		var result domain.TaskResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
		task.Result = &result
	}
	if workerID.Valid {
		task.WorkerID = &workerID.String
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		task.ClaimedAt = &t
	}
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return &task, nil
}

// collectTasks drains a task query's rows through scanTask.
func collectTasks(rows *sql.Rows) ([]*domain.Task, error) {
	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}
