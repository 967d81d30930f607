package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jiweiyuan/muse/internal/config"
	"github.com/jiweiyuan/muse/internal/events"
	"github.com/jiweiyuan/muse/internal/platform/gemini"
	"github.com/jiweiyuan/muse/internal/platform/miniostore"
	"github.com/jiweiyuan/muse/internal/platform/postgres"
	"github.com/jiweiyuan/muse/internal/service"
	"github.com/jiweiyuan/muse/internal/service/auth"
	"github.com/jiweiyuan/muse/internal/task"
)

// application holds the assembled dependency graph. Everything is wired
// once in newApplication; nothing here is a singleton.
type application struct {
	config *config.Config
	logger *slog.Logger

	db *sql.DB

	taskService    service.TaskService
	projectService service.ProjectService
	jwtService     auth.JWTService

	worker      *task.Worker
	maintenance *task.Maintenance
	emitter     *events.InMemoryEventEmitter
}

// newApplication builds the full dependency graph from configuration.
func newApplication(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	taskStore := postgres.NewPostgresTaskStore(db, appLogger, cfg.Worker.StaleAfter)
	projectStore := postgres.NewPostgresProjectStore(db, appLogger)

	assetStore, err := miniostore.New(ctx, cfg.Storage, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up object storage: %w", err)
	}

	provider, err := gemini.NewGeminiProvider(ctx, appLogger, cfg.Gen)
	if err != nil {
		return nil, fmt.Errorf("failed to set up generation provider: %w", err)
	}

	registry, err := task.NewRegistry(
		task.NewGenerateImageHandler(provider, assetStore, appLogger),
		task.NewGenerateVideoHandler(provider, assetStore, appLogger),
		task.NewImageUpscaleHandler(provider, assetStore, appLogger),
		task.NewRemoveBackgroundHandler(provider, assetStore, appLogger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build handler registry: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(appLogger)

	worker := task.NewWorker(taskStore, registry, emitter, task.WorkerConfig{
		Concurrency:           cfg.Worker.Concurrency,
		PollInterval:          cfg.Worker.PollInterval,
		ProviderRatePerMinute: cfg.Worker.ProviderRatePerMinute,
	}, appLogger)

	maintenance := task.NewMaintenance(taskStore, task.MaintenanceConfig{
		ReclaimInterval: cfg.Worker.ReclaimInterval,
		ArchiveInterval: cfg.Worker.ArchiveInterval,
		ArchiveAfter:    cfg.Worker.ArchiveAfter,
	}, appLogger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to set up JWT service: %w", err)
	}

	taskService, err := service.NewTaskService(taskStore, projectStore, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up task service: %w", err)
	}

	projectService, err := service.NewProjectService(projectStore, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up project service: %w", err)
	}

	return &application{
		config:         cfg,
		logger:         appLogger,
		db:             db,
		taskService:    taskService,
		projectService: projectService,
		jwtService:     jwtService,
		worker:         worker,
		maintenance:    maintenance,
		emitter:        emitter,
	}, nil
}

// start launches the worker, the maintenance jobs, and the HTTP server,
// blocking until ctx is cancelled or the server fails.
func (app *application) start(ctx context.Context) error {
	app.worker.Start()
	app.maintenance.Start()

	err := app.startHTTPServer(ctx, app.setupRouter())

	// Stop background work after the HTTP server has drained so in-flight
	// requests can still reach the store.
	app.worker.Stop()
	app.maintenance.Stop()

	return err
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
