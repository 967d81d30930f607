// Package miniostore persists generated assets in S3-compatible object
// storage via the MinIO client.
package miniostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jiweiyuan/muse/internal/config"
	"github.com/jiweiyuan/muse/internal/task"
)

// MinioAssetStore implements task.AssetStore on a single bucket.
type MinioAssetStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// New connects to the configured endpoint and ensures the bucket exists.
func New(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (*MinioAssetStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty object storage endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("empty object storage bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}

	log.Info("object storage ready",
		"endpoint", cfg.Endpoint,
		"bucket", cfg.Bucket)

	return &MinioAssetStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:    log,
	}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}
	return nil
}

// Store writes data under key with the given content type.
func (s *MinioAssetStore) Store(ctx context.Context, key string, data []byte, contentType string) (*task.StoredAsset, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("failed to store object %q: %w", key, err)
	}

	s.logger.Debug("stored asset",
		"key", key,
		"size_bytes", info.Size,
		"content_type", contentType)

	return &task.StoredAsset{
		Key:         key,
		ETag:        info.ETag,
		SizeBytes:   info.Size,
		URL:         s.assetURL(key),
		ContentType: contentType,
	}, nil
}

// Load reads the object stored under key.
func (s *MinioAssetStore) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %q: %w", key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}
	return data, nil
}

// assetURL builds the externally reachable URL for a stored object. With no
// configured public URL the bucket path is returned as-is; callers treat it
// as an opaque reference.
func (s *MinioAssetStore) assetURL(key string) string {
	if s.publicURL == "" {
		return fmt.Sprintf("%s/%s", s.bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
}
