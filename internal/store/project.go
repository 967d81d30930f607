package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
)

// ProjectStore defines the interface for project persistence. Projects are
// the authorization scope for tasks: the TaskService resolves a project's
// owner through this interface before every create and list.
// Version: 1.0
type ProjectStore interface {
	// Create saves a new project to the store.
	// Returns validation errors from the domain Project if data is invalid.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project by its unique ID.
	// Returns ErrProjectNotFound if the project does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// WithTx returns a new ProjectStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProjectStore
}
