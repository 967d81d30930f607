package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jiweiyuan/muse/internal/store"
)

// MaintenanceConfig holds the schedule for the lifecycle jobs.
type MaintenanceConfig struct {
	// ReclaimInterval is how often stale processing claims are swept.
	ReclaimInterval time.Duration

	// ArchiveInterval is how often terminal tasks are pruned.
	ArchiveInterval time.Duration

	// ArchiveAfter is the age past which completed and failed tasks are
	// removed.
	ArchiveAfter time.Duration
}

// DefaultMaintenanceConfig returns a MaintenanceConfig with reasonable
// defaults.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		ReclaimInterval: time.Minute,
		ArchiveInterval: 24 * time.Hour,
		ArchiveAfter:    7 * 24 * time.Hour,
	}
}

// Maintenance runs the periodic lifecycle jobs: returning stale processing
// tasks to the queue and pruning old terminal tasks. Each cycle is
// independent; an error in one sweep is logged and the next cycle runs on
// schedule.
type Maintenance struct {
	store  store.TaskStore
	logger *slog.Logger
	config MaintenanceConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMaintenance creates the lifecycle job runner.
func NewMaintenance(taskStore store.TaskStore, config MaintenanceConfig, log *slog.Logger) *Maintenance {
	defaults := DefaultMaintenanceConfig()
	if config.ReclaimInterval <= 0 {
		config.ReclaimInterval = defaults.ReclaimInterval
	}
	if config.ArchiveInterval <= 0 {
		config.ArchiveInterval = defaults.ArchiveInterval
	}
	if config.ArchiveAfter <= 0 {
		config.ArchiveAfter = defaults.ArchiveAfter
	}

	return &Maintenance{
		store:  taskStore,
		logger: log,
		config: config,
	}
}

// Start launches the job loops. Calling Start on a running instance is a
// no-op.
func (m *Maintenance) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(2)
	go m.reclaimLoop(ctx)
	go m.archiveLoop(ctx)

	m.logger.Info("maintenance jobs started",
		"reclaim_interval", m.config.ReclaimInterval,
		"archive_interval", m.config.ArchiveInterval,
		"archive_after", m.config.ArchiveAfter)
}

// Stop shuts the job loops down. Calling Stop on a stopped instance is a
// no-op.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("maintenance jobs stopped")
}

func (m *Maintenance) reclaimLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reclaimStale(ctx)
		}
	}
}

func (m *Maintenance) archiveLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.archiveTerminal(ctx)
		}
	}
}

// reclaimStale sweeps expired processing claims once.
func (m *Maintenance) reclaimStale(ctx context.Context) {
	affected, err := m.store.CleanupStale(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("stale claim sweep failed", "error", err)
		}
		return
	}
	if affected > 0 {
		m.logger.Info("swept stale claims", "affected", affected)
	}
}

// archiveTerminal prunes old terminal tasks once.
func (m *Maintenance) archiveTerminal(ctx context.Context) {
	removed, err := m.store.ArchiveTerminal(ctx, m.config.ArchiveAfter)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("terminal task archival failed", "error", err)
		}
		return
	}
	if removed > 0 {
		m.logger.Info("archived terminal tasks", "removed", removed)
	}
}
