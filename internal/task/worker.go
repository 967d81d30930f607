package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/events"
	"github.com/jiweiyuan/muse/internal/generation"
	"github.com/jiweiyuan/muse/internal/store"
	"golang.org/x/time/rate"
)

// Error codes written into a failed task's result.
const (
	errorCodeContentBlocked   = "content_blocked"
	errorCodeInvalidParams    = "invalid_params"
	errorCodeInvalidResponse  = "invalid_response"
	errorCodeRetriesExhausted = "retries_exhausted"
	errorCodePanic            = "execution_panic"
	errorCodeExecutionFailed  = "execution_failed"
)

// errPanicked marks errors recovered from a panicking handler.
var errPanicked = errors.New("task execution panicked")

// WorkerConfig holds configuration for the worker pool.
type WorkerConfig struct {
	// WorkerID identifies this worker instance in claim stamps.
	// If empty, a random ID is generated.
	WorkerID string

	// Concurrency is the maximum number of tasks executing at once.
	Concurrency int

	// PollInterval is how often the store is polled for claimable tasks.
	PollInterval time.Duration

	// ProviderRatePerMinute bounds provider requests per minute. Calls
	// beyond the limit wait for a token rather than failing, so provider
	// throttling never cascades into task failures.
	ProviderRatePerMinute int
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:           3,
		PollInterval:          5 * time.Second,
		ProviderRatePerMinute: 50,
	}
}

// WorkerStatus is a snapshot of the worker for the health boundary.
type WorkerStatus struct {
	WorkerID string        `json:"worker_id"`
	Running  bool          `json:"running"`
	InFlight int           `json:"in_flight"`
	Uptime   time.Duration `json:"uptime"`
}

// Worker continuously converts claimed tasks into completed or failed
// results. It polls the store on a fixed interval, claims up to its free
// capacity, and executes each claimed task in its own goroutine. A failure
// inside one task never terminates the polling loop: panics are recovered
// and converted into the normal failure path.
//
// Worker is an explicitly constructed component, not a singleton; tests
// instantiate independent instances freely.
type Worker struct {
	store    store.TaskStore
	registry Registry
	limiter  *rate.Limiter
	emitter  events.EventEmitter
	logger   *slog.Logger
	config   WorkerConfig

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	startedAt time.Time

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewWorker creates a new Worker. The registry must cover every task type
// (see NewRegistry); emitter may be nil when no subscriber cares about
// lifecycle events.
func NewWorker(
	taskStore store.TaskStore,
	registry Registry,
	emitter events.EventEmitter,
	config WorkerConfig,
	log *slog.Logger,
) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = "worker-" + uuid.NewString()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultWorkerConfig().Concurrency
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWorkerConfig().PollInterval
	}
	if config.ProviderRatePerMinute <= 0 {
		config.ProviderRatePerMinute = DefaultWorkerConfig().ProviderRatePerMinute
	}

	// One token per provider call, refilled evenly across the minute.
	limiter := rate.NewLimiter(
		rate.Every(time.Minute/time.Duration(config.ProviderRatePerMinute)), 1)

	return &Worker{
		store:    taskStore,
		registry: registry,
		limiter:  limiter,
		emitter:  emitter,
		logger:   log.With("worker_id", config.WorkerID),
		config:   config,
	}
}

// Start launches the polling loop. Calling Start on a running worker is a
// no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running = true
	w.startedAt = time.Now()

	w.wg.Add(1)
	go w.pollLoop(ctx)

	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"poll_interval", w.config.PollInterval,
		"provider_rate_per_minute", w.config.ProviderRatePerMinute)
}

// Stop shuts the worker down and waits for in-flight tasks to finish or
// abandon their claims. Calling Stop on a stopped worker is a no-op.
// Abandoned tasks (those interrupted mid-execution) keep their processing
// status and are recovered later by the stale-reclaim job.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// Status returns a snapshot of the worker for the health boundary.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	running := w.running
	startedAt := w.startedAt
	w.mu.Unlock()

	var uptime time.Duration
	if running {
		uptime = time.Since(startedAt)
	}

	return WorkerStatus{
		WorkerID: w.config.WorkerID,
		Running:  running,
		InFlight: int(w.inFlight.Load()),
		Uptime:   uptime,
	}
}

// pollLoop claims and dispatches tasks until the worker is stopped.
func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Claim immediately on start rather than waiting a full interval.
	w.claimAndDispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.claimAndDispatch(ctx)
		}
	}
}

// claimAndDispatch claims up to the worker's free capacity and launches a
// goroutine per claimed task. Store errors are logged and retried on the
// next tick; they never terminate the loop.
func (w *Worker) claimAndDispatch(ctx context.Context) {
	capacity := w.config.Concurrency - int(w.inFlight.Load())
	if capacity <= 0 {
		return
	}

	tasks, err := w.store.Claim(ctx, w.config.WorkerID, capacity)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to claim tasks", "error", err)
		}
		return
	}

	if len(tasks) == 0 {
		return
	}

	w.logger.Debug("claimed tasks", "count", len(tasks))

	for _, t := range tasks {
		w.inFlight.Add(1)
		w.wg.Add(1)
		go w.execute(ctx, t)
	}
}

// execute runs a single claimed task to a terminal state or a requeue.
// Every failure mode, panics included, resolves through failOrRetry so one
// broken task cannot take the worker down.
func (w *Worker) execute(ctx context.Context, t *domain.Task) {
	defer w.wg.Done()
	defer w.inFlight.Add(-1)

	log := w.logger.With(
		"task_id", t.ID,
		"task_type", t.Type,
		"attempt", t.RetryCount+1,
	)

	if err := w.limiter.Wait(ctx); err != nil {
		// Shutdown while queued behind the rate gate. The claim stays in
		// place and the stale-reclaim job will return the task to pending.
		log.Debug("abandoning task before execution", "error", err)
		return
	}

	log.Info("executing task")

	result, err := w.runHandler(ctx, t)
	if err == nil {
		w.complete(ctx, t, result, log)
		return
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Interrupted by shutdown, not by the task itself; abandon the
		// claim for reclaim rather than burning a retry.
		log.Debug("abandoning task mid-execution")
		return
	}

	w.failOrRetry(ctx, t, err, log)
}

// runHandler dispatches to the task type's handler, converting panics into
// errors.
func (w *Worker) runHandler(ctx context.Context, t *domain.Task) (result *domain.TaskResult, err error) {
	handler, ok := w.registry[t.Type]
	if !ok {
		// NewRegistry makes this unreachable; guard anyway.
		return nil, fmt.Errorf("no handler for task type %q", t.Type)
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%w: %v", errPanicked, p)
		}
	}()

	return handler.Execute(ctx, t)
}

// complete marks the task completed and emits its lifecycle event.
func (w *Worker) complete(ctx context.Context, t *domain.Task, result *domain.TaskResult, log *slog.Logger) {
	now := time.Now().UTC()
	status := domain.TaskStatusCompleted

	updated, err := w.store.Update(ctx, t.ID, store.TaskUpdate{
		Status:      &status,
		Result:      result,
		CompletedAt: &now,
		ClearClaim:  true,
	})
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			// Cancelled while executing; the row is gone and that is fine.
			log.Info("task row gone after execution, likely cancelled")
			return
		}
		log.Error("failed to mark task completed", "error", err)
		return
	}

	log.Info("task completed",
		"asset_id", result.AssetID,
		"size_bytes", result.SizeBytes)

	w.emit(ctx, events.EventTaskCompleted, updated)
}

// failOrRetry requeues a transiently failed task with budget left, and
// permanently fails everything else.
func (w *Worker) failOrRetry(ctx context.Context, t *domain.Task, execErr error, log *slog.Logger) {
	retryCount := t.RetryCount + 1
	retriable := generation.IsTransient(execErr)

	if retriable && retryCount <= t.MaxRetries {
		status := domain.TaskStatusPending

		_, err := w.store.Update(ctx, t.ID, store.TaskUpdate{
			Status:     &status,
			RetryCount: &retryCount,
			ClearClaim: true,
		})
		if err != nil {
			if errors.Is(err, store.ErrTaskNotFound) {
				log.Info("task row gone after failure, likely cancelled")
				return
			}
			log.Error("failed to requeue task", "error", err)
			return
		}

		log.Warn("task failed transiently, requeued",
			"error", execErr,
			"retry_count", retryCount,
			"max_retries", t.MaxRetries)
		return
	}

	now := time.Now().UTC()
	status := domain.TaskStatusFailed

	updated, err := w.store.Update(ctx, t.ID, store.TaskUpdate{
		Status: &status,
		Result: &domain.TaskResult{
			ErrorCode:    errorCodeFor(execErr, retriable),
			ErrorMessage: execErr.Error(),
			Attempts:     retryCount,
		},
		RetryCount:  &retryCount,
		CompletedAt: &now,
		ClearClaim:  true,
	})
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Info("task row gone after failure, likely cancelled")
			return
		}
		log.Error("failed to mark task failed", "error", err)
		return
	}

	log.Error("task failed permanently",
		"error", execErr,
		"attempts", retryCount)

	w.emit(ctx, events.EventTaskFailed, updated)
}

// emit publishes a lifecycle event if an emitter is configured.
func (w *Worker) emit(ctx context.Context, eventType string, t *domain.Task) {
	if w.emitter == nil {
		return
	}
	if err := w.emitter.EmitEvent(ctx, events.NewTaskEvent(eventType, t)); err != nil {
		w.logger.Error("failed to emit task event",
			"event_type", eventType,
			"task_id", t.ID,
			"error", err)
	}
}

// errorCodeFor maps an execution error to the stable code persisted in the
// task result.
func errorCodeFor(err error, wasTransient bool) string {
	switch {
	case wasTransient:
		return errorCodeRetriesExhausted
	case errors.Is(err, generation.ErrContentBlocked):
		return errorCodeContentBlocked
	case errors.Is(err, generation.ErrInvalidParams),
		errors.Is(err, domain.ErrInvalidTaskBody):
		return errorCodeInvalidParams
	case errors.Is(err, generation.ErrInvalidResponse):
		return errorCodeInvalidResponse
	case errors.Is(err, errPanicked):
		return errorCodePanic
	default:
		return errorCodeExecutionFailed
	}
}
