package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/platform/logger"
	"github.com/jiweiyuan/muse/internal/store"
)

// ProjectService provides project-related operations scoped to an
// authenticated owner.
type ProjectService interface {
	// CreateProject creates a new project owned by ownerID.
	CreateProject(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Project, error)

	// GetProject retrieves a project scoped to the owner. A foreign project
	// yields store.ErrProjectNotFound, same as a missing one.
	GetProject(ctx context.Context, ownerID, projectID uuid.UUID) (*domain.Project, error)
}

type projectServiceImpl struct {
	projectStore store.ProjectStore
	logger       *slog.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectStore store.ProjectStore, log *slog.Logger) (ProjectService, error) {
	if projectStore == nil {
		return nil, fmt.Errorf("projectStore cannot be nil: %w", domain.ErrValidation)
	}
	if log == nil {
		log = slog.Default()
	}

	return &projectServiceImpl{
		projectStore: projectStore,
		logger:       log.With(slog.String("component", "project_service")),
	}, nil
}

// CreateProject implements ProjectService.CreateProject.
func (s *projectServiceImpl) CreateProject(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Project, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	project, err := domain.NewProject(ownerID, name)
	if err != nil {
		return nil, err
	}

	if err := s.projectStore.Create(ctx, project); err != nil {
		log.Error("failed to create project", "error", err)
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	log.Info("project created", "project_id", project.ID)
	return project, nil
}

// GetProject implements ProjectService.GetProject.
func (s *projectServiceImpl) GetProject(ctx context.Context, ownerID, projectID uuid.UUID) (*domain.Project, error) {
	project, err := s.projectStore.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	// Hide foreign projects entirely rather than acknowledging them.
	if project.OwnerID != ownerID {
		return nil, store.ErrProjectNotFound
	}

	return project, nil
}
