package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/store"
)

// MockProjectStore implements store.ProjectStore for testing.
type MockProjectStore struct {
	// Custom behavior functions
	CreateFn  func(ctx context.Context, project *domain.Project) error
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// Err is returned when set and no Fn overrides the call.
	Err error

	mu       sync.Mutex
	projects map[uuid.UUID]*domain.Project
}

// Seed inserts projects directly for test setup.
func (m *MockProjectStore) Seed(projects ...*domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projects == nil {
		m.projects = make(map[uuid.UUID]*domain.Project)
	}
	for _, p := range projects {
		copied := *p
		m.projects[p.ID] = &copied
	}
}

// Create implements the store.ProjectStore interface.
func (m *MockProjectStore) Create(ctx context.Context, project *domain.Project) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, project)
	}
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projects == nil {
		m.projects = make(map[uuid.UUID]*domain.Project)
	}
	if _, exists := m.projects[project.ID]; exists {
		return store.ErrDuplicate
	}
	copied := *project
	m.projects[project.ID] = &copied
	return nil
}

// GetByID implements the store.ProjectStore interface.
func (m *MockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	copied := *p
	return &copied, nil
}

// WithTx returns the store itself; the mock has no transactions.
func (m *MockProjectStore) WithTx(tx *sql.Tx) store.ProjectStore {
	return m
}
