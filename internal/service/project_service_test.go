package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/mocks"
	"github.com/jiweiyuan/muse/internal/service"
	"github.com/jiweiyuan/muse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectService_CreateAndGet(t *testing.T) {
	t.Parallel()

	svc, err := service.NewProjectService(&mocks.MockProjectStore{}, nil)
	require.NoError(t, err)

	ownerID := uuid.New()
	project, err := svc.CreateProject(context.Background(), ownerID, "storyboard")
	require.NoError(t, err)
	assert.Equal(t, "storyboard", project.Name)
	assert.Equal(t, ownerID, project.OwnerID)

	found, err := svc.GetProject(context.Background(), ownerID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, found.ID)
}

func TestProjectService_CreateProject_Validates(t *testing.T) {
	t.Parallel()

	svc, err := service.NewProjectService(&mocks.MockProjectStore{}, nil)
	require.NoError(t, err)

	_, err = svc.CreateProject(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyProjectName)
}

func TestProjectService_GetProject_HidesForeignProjects(t *testing.T) {
	t.Parallel()

	svc, err := service.NewProjectService(&mocks.MockProjectStore{}, nil)
	require.NoError(t, err)

	project, err := svc.CreateProject(context.Background(), uuid.New(), "private board")
	require.NoError(t, err)

	_, err = svc.GetProject(context.Background(), uuid.New(), project.ID)
	assert.ErrorIs(t, err, store.ErrProjectNotFound)
}
