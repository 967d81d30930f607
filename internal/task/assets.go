package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// StoredAsset describes an object persisted by an AssetStore.
type StoredAsset struct {
	Key         string
	ETag        string
	SizeBytes   int64
	URL         string
	ContentType string
}

// AssetStore is the object storage boundary the handlers persist generated
// assets through and load source assets from.
type AssetStore interface {
	// Store writes data under key with the given content type.
	Store(ctx context.Context, key string, data []byte, contentType string) (*StoredAsset, error)

	// Load reads the object stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
}

// assetKey builds the storage key for a task's output asset. Keys are
// namespaced by project so downstream cleanup can operate per project.
func assetKey(projectID, taskID uuid.UUID, mimeType string) string {
	return fmt.Sprintf("projects/%s/generated/%s%s", projectID, taskID, extensionFor(mimeType))
}

// extensionFor picks a file extension for the handful of MIME types the
// providers emit. Unknown types get no extension; the content type is
// stored with the object regardless.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ""
	}
}
