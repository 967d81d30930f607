package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/generation"
)

// GenerateImageHandler executes generate_image tasks.
type GenerateImageHandler struct {
	provider generation.ImageProvider
	assets   AssetStore
	logger   *slog.Logger
}

// NewGenerateImageHandler creates a handler for generate_image tasks.
func NewGenerateImageHandler(provider generation.ImageProvider, assets AssetStore, log *slog.Logger) *GenerateImageHandler {
	return &GenerateImageHandler{
		provider: provider,
		assets:   assets,
		logger:   log,
	}
}

// Type returns the task type this handler executes.
func (h *GenerateImageHandler) Type() domain.TaskType {
	return domain.TaskTypeGenerateImage
}

// Execute generates an image from the task prompt and persists it.
func (h *GenerateImageHandler) Execute(ctx context.Context, task *domain.Task) (*domain.TaskResult, error) {
	var body domain.GenerateImageBody
	if err := domain.DecodeTaskBody(task, &body); err != nil {
		return nil, err
	}

	artifact, err := h.provider.GenerateImage(ctx, generation.GenerateImageParams{
		Prompt: body.Prompt,
		Width:  body.Width,
		Height: body.Height,
		Style:  body.Style,
	})
	if err != nil {
		return nil, err
	}

	return persistArtifact(ctx, h.assets, task, artifact)
}

// GenerateVideoHandler executes generate_video tasks.
type GenerateVideoHandler struct {
	provider generation.VideoProvider
	assets   AssetStore
	logger   *slog.Logger
}

// NewGenerateVideoHandler creates a handler for generate_video tasks.
func NewGenerateVideoHandler(provider generation.VideoProvider, assets AssetStore, log *slog.Logger) *GenerateVideoHandler {
	return &GenerateVideoHandler{
		provider: provider,
		assets:   assets,
		logger:   log,
	}
}

// Type returns the task type this handler executes.
func (h *GenerateVideoHandler) Type() domain.TaskType {
	return domain.TaskTypeGenerateVideo
}

// Execute generates a video from the task prompt, optionally seeded with a
// source asset, and persists it.
func (h *GenerateVideoHandler) Execute(ctx context.Context, task *domain.Task) (*domain.TaskResult, error) {
	var body domain.GenerateVideoBody
	if err := domain.DecodeTaskBody(task, &body); err != nil {
		return nil, err
	}

	var sourceImage []byte
	if body.SourceAssetID != "" {
		data, err := h.assets.Load(ctx, body.SourceAssetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load source asset %q: %w", body.SourceAssetID, err)
		}
		sourceImage = data
	}

	artifact, err := h.provider.GenerateVideo(ctx, generation.GenerateVideoParams{
		Prompt:          body.Prompt,
		DurationSeconds: body.DurationSeconds,
		SourceImage:     sourceImage,
	})
	if err != nil {
		return nil, err
	}

	return persistArtifact(ctx, h.assets, task, artifact)
}

// ImageUpscaleHandler executes image_upscale tasks.
type ImageUpscaleHandler struct {
	provider generation.ImageProvider
	assets   AssetStore
	logger   *slog.Logger
}

// NewImageUpscaleHandler creates a handler for image_upscale tasks.
func NewImageUpscaleHandler(provider generation.ImageProvider, assets AssetStore, log *slog.Logger) *ImageUpscaleHandler {
	return &ImageUpscaleHandler{
		provider: provider,
		assets:   assets,
		logger:   log,
	}
}

// Type returns the task type this handler executes.
func (h *ImageUpscaleHandler) Type() domain.TaskType {
	return domain.TaskTypeImageUpscale
}

// Execute upscales the referenced source asset and persists the result.
func (h *ImageUpscaleHandler) Execute(ctx context.Context, task *domain.Task) (*domain.TaskResult, error) {
	var body domain.ImageUpscaleBody
	if err := domain.DecodeTaskBody(task, &body); err != nil {
		return nil, err
	}

	source, err := h.assets.Load(ctx, body.AssetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source asset %q: %w", body.AssetID, err)
	}

	artifact, err := h.provider.UpscaleImage(ctx, generation.UpscaleParams{
		Image:    source,
		MIMEType: "image/png",
		Factor:   body.Factor,
	})
	if err != nil {
		return nil, err
	}

	return persistArtifact(ctx, h.assets, task, artifact)
}

// RemoveBackgroundHandler executes image_remove_background tasks.
type RemoveBackgroundHandler struct {
	provider generation.ImageProvider
	assets   AssetStore
	logger   *slog.Logger
}

// NewRemoveBackgroundHandler creates a handler for image_remove_background tasks.
func NewRemoveBackgroundHandler(provider generation.ImageProvider, assets AssetStore, log *slog.Logger) *RemoveBackgroundHandler {
	return &RemoveBackgroundHandler{
		provider: provider,
		assets:   assets,
		logger:   log,
	}
}

// Type returns the task type this handler executes.
func (h *RemoveBackgroundHandler) Type() domain.TaskType {
	return domain.TaskTypeRemoveBackground
}

// Execute removes the background from the referenced source asset and
// persists the result.
func (h *RemoveBackgroundHandler) Execute(ctx context.Context, task *domain.Task) (*domain.TaskResult, error) {
	var body domain.RemoveBackgroundBody
	if err := domain.DecodeTaskBody(task, &body); err != nil {
		return nil, err
	}

	source, err := h.assets.Load(ctx, body.AssetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source asset %q: %w", body.AssetID, err)
	}

	artifact, err := h.provider.RemoveBackground(ctx, generation.RemoveBackgroundParams{
		Image:    source,
		MIMEType: "image/png",
	})
	if err != nil {
		return nil, err
	}

	return persistArtifact(ctx, h.assets, task, artifact)
}

// persistArtifact writes a provider artifact to the asset store and builds
// the task result referencing it.
func persistArtifact(ctx context.Context, assets AssetStore, task *domain.Task, artifact *generation.Artifact) (*domain.TaskResult, error) {
	key := assetKey(task.ProjectID, task.ID, artifact.MIMEType)

	stored, err := assets.Store(ctx, key, artifact.Data, artifact.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("failed to store generated asset: %w", err)
	}

	return &domain.TaskResult{
		AssetID:         stored.Key,
		AssetURL:        stored.URL,
		ContentType:     stored.ContentType,
		SizeBytes:       stored.SizeBytes,
		ETag:            stored.ETag,
		Width:           artifact.Width,
		Height:          artifact.Height,
		DurationSeconds: artifact.DurationSeconds,
	}, nil
}
