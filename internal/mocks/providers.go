package mocks

import (
	"context"
	"sync"

	"github.com/jiweiyuan/muse/internal/generation"
)

// MockImageProvider implements generation.ImageProvider for testing.
type MockImageProvider struct {
	// Custom behavior functions
	GenerateImageFn    func(ctx context.Context, params generation.GenerateImageParams) (*generation.Artifact, error)
	UpscaleImageFn     func(ctx context.Context, params generation.UpscaleParams) (*generation.Artifact, error)
	RemoveBackgroundFn func(ctx context.Context, params generation.RemoveBackgroundParams) (*generation.Artifact, error)

	// Default response values
	Artifact *generation.Artifact
	Err      error

	// Call tracking for verification
	mu                    sync.Mutex
	GenerateImageCalls    []generation.GenerateImageParams
	UpscaleImageCalls     []generation.UpscaleParams
	RemoveBackgroundCalls []generation.RemoveBackgroundParams
}

// GenerateImage implements the generation.ImageProvider interface.
func (m *MockImageProvider) GenerateImage(ctx context.Context, params generation.GenerateImageParams) (*generation.Artifact, error) {
	m.mu.Lock()
	m.GenerateImageCalls = append(m.GenerateImageCalls, params)
	m.mu.Unlock()

	if m.GenerateImageFn != nil {
		return m.GenerateImageFn(ctx, params)
	}
	return m.Artifact, m.Err
}

// UpscaleImage implements the generation.ImageProvider interface.
func (m *MockImageProvider) UpscaleImage(ctx context.Context, params generation.UpscaleParams) (*generation.Artifact, error) {
	m.mu.Lock()
	m.UpscaleImageCalls = append(m.UpscaleImageCalls, params)
	m.mu.Unlock()

	if m.UpscaleImageFn != nil {
		return m.UpscaleImageFn(ctx, params)
	}
	return m.Artifact, m.Err
}

// RemoveBackground implements the generation.ImageProvider interface.
func (m *MockImageProvider) RemoveBackground(ctx context.Context, params generation.RemoveBackgroundParams) (*generation.Artifact, error) {
	m.mu.Lock()
	m.RemoveBackgroundCalls = append(m.RemoveBackgroundCalls, params)
	m.mu.Unlock()

	if m.RemoveBackgroundFn != nil {
		return m.RemoveBackgroundFn(ctx, params)
	}
	return m.Artifact, m.Err
}

// MockVideoProvider implements generation.VideoProvider for testing.
type MockVideoProvider struct {
	GenerateVideoFn func(ctx context.Context, params generation.GenerateVideoParams) (*generation.Artifact, error)

	Artifact *generation.Artifact
	Err      error

	mu                 sync.Mutex
	GenerateVideoCalls []generation.GenerateVideoParams
}

// GenerateVideo implements the generation.VideoProvider interface.
func (m *MockVideoProvider) GenerateVideo(ctx context.Context, params generation.GenerateVideoParams) (*generation.Artifact, error) {
	m.mu.Lock()
	m.GenerateVideoCalls = append(m.GenerateVideoCalls, params)
	m.mu.Unlock()

	if m.GenerateVideoFn != nil {
		return m.GenerateVideoFn(ctx, params)
	}
	return m.Artifact, m.Err
}
