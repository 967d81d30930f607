package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/platform/logger"
	"github.com/jiweiyuan/muse/internal/store"
)

// PostgresProjectStore implements the store.ProjectStore interface using PostgreSQL.
type PostgresProjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProjectStore creates a new PostgresProjectStore.
func NewPostgresProjectStore(db store.DBTX, log *slog.Logger) *PostgresProjectStore {
	return &PostgresProjectStore{
		db:     db,
		logger: log,
	}
}

// WithTx returns a new ProjectStore instance that uses the provided transaction.
func (s *PostgresProjectStore) WithTx(tx *sql.Tx) store.ProjectStore {
	return &PostgresProjectStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create saves a new project to the database.
func (s *PostgresProjectStore) Create(ctx context.Context, project *domain.Project) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := project.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO projects (id, owner_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save project",
			"project_id", project.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a project by its unique ID.
func (s *PostgresProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	var project domain.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrProjectNotFound
		}
		return nil, MapError(err)
	}

	return &project, nil
}
