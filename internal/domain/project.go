package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Project
var (
	ErrEmptyProjectID      = errors.New("project ID cannot be empty")
	ErrEmptyProjectOwnerID = errors.New("project owner ID cannot be empty")
	ErrEmptyProjectName    = errors.New("project name cannot be empty")
)

// Project is the authorization scope for tasks. Every task belongs to a
// project, and a caller may only touch tasks in projects they own.
type Project struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new Project owned by the given user.
// Returns an error if validation fails.
func NewProject(ownerID uuid.UUID, name string) (*Project, error) {
	now := time.Now().UTC()
	project := &Project{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := project.Validate(); err != nil {
		return nil, err
	}

	return project, nil
}

// Validate checks if the Project has valid data.
func (p *Project) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProjectID
	}

	if p.OwnerID == uuid.Nil {
		return ErrEmptyProjectOwnerID
	}

	if p.Name == "" {
		return ErrEmptyProjectName
	}

	return nil
}
