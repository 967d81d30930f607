package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/jiweiyuan/muse/internal/task"
)

// MockAssetStore implements task.AssetStore with an in-memory object map.
type MockAssetStore struct {
	// Custom behavior functions
	StoreFn func(ctx context.Context, key string, data []byte, contentType string) (*task.StoredAsset, error)
	LoadFn  func(ctx context.Context, key string) ([]byte, error)

	// Err is returned by both operations when set and no Fn overrides it.
	Err error

	// PublicURL prefixes stored asset URLs; defaults to "mock://".
	PublicURL string

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

// Store implements the task.AssetStore interface.
func (m *MockAssetStore) Store(ctx context.Context, key string, data []byte, contentType string) (*task.StoredAsset, error) {
	if m.StoreFn != nil {
		return m.StoreFn(ctx, key, data, contentType)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.objects == nil {
		m.objects = make(map[string][]byte)
		m.types = make(map[string]string)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[key] = copied
	m.types[key] = contentType

	prefix := m.PublicURL
	if prefix == "" {
		prefix = "mock://"
	}

	return &task.StoredAsset{
		Key:         key,
		ETag:        fmt.Sprintf("etag-%d", len(data)),
		SizeBytes:   int64(len(data)),
		URL:         prefix + key,
		ContentType: contentType,
	}, nil
}

// Load implements the task.AssetStore interface.
func (m *MockAssetStore) Load(ctx context.Context, key string) ([]byte, error) {
	if m.LoadFn != nil {
		return m.LoadFn(ctx, key)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Stored reports whether an object exists under key.
func (m *MockAssetStore) Stored(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
