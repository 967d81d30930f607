package task_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/generation"
	"github.com/jiweiyuan/muse/internal/mocks"
	"github.com/jiweiyuan/muse/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	allHandlers := func() []task.Handler {
		handlers := make([]task.Handler, 0, len(domain.AllTaskTypes))
		for _, tt := range domain.AllTaskTypes {
			handlers = append(handlers, &stubHandler{taskType: tt})
		}
		return handlers
	}

	t.Run("accepts a full handler set", func(t *testing.T) {
		t.Parallel()

		registry, err := task.NewRegistry(allHandlers()...)
		require.NoError(t, err)
		assert.Len(t, registry, len(domain.AllTaskTypes))
	})

	t.Run("rejects a missing handler", func(t *testing.T) {
		t.Parallel()

		handlers := allHandlers()[1:]
		_, err := task.NewRegistry(handlers...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no handler registered")
	})

	t.Run("rejects a duplicate handler", func(t *testing.T) {
		t.Parallel()

		handlers := append(allHandlers(), &stubHandler{taskType: domain.TaskTypeGenerateImage})
		_, err := task.NewRegistry(handlers...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate handler")
	})

	t.Run("rejects an unknown task type", func(t *testing.T) {
		t.Parallel()

		handlers := append(allHandlers(), &stubHandler{taskType: domain.TaskType("make_coffee")})
		_, err := task.NewRegistry(handlers...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown task type")
	})
}

func bodyTask(t *testing.T, taskType domain.TaskType, body any) *domain.Task {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	created, err := domain.NewTask(taskType, uuid.New(), uuid.New(), nil, raw, 0)
	require.NoError(t, err)
	return created
}

func TestGenerateImageHandler_Execute(t *testing.T) {
	t.Parallel()

	provider := &mocks.MockImageProvider{
		Artifact: &generation.Artifact{
			Data:     []byte("png-bytes"),
			MIMEType: "image/png",
			Width:    1024,
			Height:   768,
		},
	}
	assets := &mocks.MockAssetStore{PublicURL: "https://assets.example.com/"}

	handler := task.NewGenerateImageHandler(provider, assets, slog.Default())
	assert.Equal(t, domain.TaskTypeGenerateImage, handler.Type())

	tk := bodyTask(t, domain.TaskTypeGenerateImage, domain.GenerateImageBody{
		Prompt: "a lighthouse at dusk",
		Width:  1024,
		Height: 768,
		Style:  "watercolor",
	})

	result, err := handler.Execute(context.Background(), tk)
	require.NoError(t, err)

	wantKey := fmt.Sprintf("projects/%s/generated/%s.png", tk.ProjectID, tk.ID)
	assert.Equal(t, wantKey, result.AssetID)
	assert.Equal(t, "https://assets.example.com/"+wantKey, result.AssetURL)
	assert.Equal(t, "image/png", result.ContentType)
	assert.EqualValues(t, len("png-bytes"), result.SizeBytes)
	assert.Equal(t, 1024, result.Width)
	assert.Equal(t, 768, result.Height)
	assert.True(t, assets.Stored(wantKey))

	require.Len(t, provider.GenerateImageCalls, 1)
	call := provider.GenerateImageCalls[0]
	assert.Equal(t, "a lighthouse at dusk", call.Prompt)
	assert.Equal(t, "watercolor", call.Style)
}

func TestGenerateImageHandler_RejectsMalformedBody(t *testing.T) {
	t.Parallel()

	handler := task.NewGenerateImageHandler(&mocks.MockImageProvider{}, &mocks.MockAssetStore{}, slog.Default())

	tk := newTestTask(t, domain.TaskTypeGenerateImage, 0)
	tk.Body = json.RawMessage(`{"prompt": "x", "width": "large"}`)

	_, err := handler.Execute(context.Background(), tk)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTaskBody)
}

func TestImageUpscaleHandler_Execute(t *testing.T) {
	t.Parallel()

	assets := &mocks.MockAssetStore{}
	source, err := assets.Store(context.Background(), "projects/p/generated/source.png", []byte("source-bytes"), "image/png")
	require.NoError(t, err)

	provider := &mocks.MockImageProvider{
		Artifact: &generation.Artifact{
			Data:     []byte("upscaled-bytes"),
			MIMEType: "image/png",
			Width:    2048,
			Height:   2048,
		},
	}

	handler := task.NewImageUpscaleHandler(provider, assets, slog.Default())
	assert.Equal(t, domain.TaskTypeImageUpscale, handler.Type())

	tk := bodyTask(t, domain.TaskTypeImageUpscale, domain.ImageUpscaleBody{
		AssetID: source.Key,
		Factor:  2,
	})

	result, err := handler.Execute(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, 2048, result.Width)

	require.Len(t, provider.UpscaleImageCalls, 1)
	call := provider.UpscaleImageCalls[0]
	assert.Equal(t, []byte("source-bytes"), call.Image)
	assert.Equal(t, 2, call.Factor)
}

func TestImageUpscaleHandler_MissingSourceAsset(t *testing.T) {
	t.Parallel()

	handler := task.NewImageUpscaleHandler(&mocks.MockImageProvider{}, &mocks.MockAssetStore{}, slog.Default())

	tk := bodyTask(t, domain.TaskTypeImageUpscale, domain.ImageUpscaleBody{
		AssetID: "projects/p/generated/missing.png",
		Factor:  2,
	})

	_, err := handler.Execute(context.Background(), tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load source asset")
}

func TestGenerateVideoHandler_Execute(t *testing.T) {
	t.Parallel()

	assets := &mocks.MockAssetStore{}
	seed, err := assets.Store(context.Background(), "projects/p/generated/seed.png", []byte("seed-bytes"), "image/png")
	require.NoError(t, err)

	provider := &mocks.MockVideoProvider{
		Artifact: &generation.Artifact{
			Data:            []byte("mp4-bytes"),
			MIMEType:        "video/mp4",
			DurationSeconds: 8,
		},
	}

	handler := task.NewGenerateVideoHandler(provider, assets, slog.Default())
	assert.Equal(t, domain.TaskTypeGenerateVideo, handler.Type())

	tk := bodyTask(t, domain.TaskTypeGenerateVideo, domain.GenerateVideoBody{
		Prompt:          "waves crashing on rocks",
		DurationSeconds: 8,
		SourceAssetID:   seed.Key,
	})

	result, err := handler.Execute(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, 8, result.DurationSeconds)
	assert.Equal(t, "video/mp4", result.ContentType)

	wantKey := fmt.Sprintf("projects/%s/generated/%s.mp4", tk.ProjectID, tk.ID)
	assert.Equal(t, wantKey, result.AssetID)

	require.Len(t, provider.GenerateVideoCalls, 1)
	call := provider.GenerateVideoCalls[0]
	assert.Equal(t, "waves crashing on rocks", call.Prompt)
	assert.Equal(t, []byte("seed-bytes"), call.SourceImage)
}

func TestRemoveBackgroundHandler_Execute(t *testing.T) {
	t.Parallel()

	assets := &mocks.MockAssetStore{}
	source, err := assets.Store(context.Background(), "projects/p/generated/photo.png", []byte("photo-bytes"), "image/png")
	require.NoError(t, err)

	provider := &mocks.MockImageProvider{
		Artifact: &generation.Artifact{
			Data:     []byte("cutout-bytes"),
			MIMEType: "image/png",
		},
	}

	handler := task.NewRemoveBackgroundHandler(provider, assets, slog.Default())
	assert.Equal(t, domain.TaskTypeRemoveBackground, handler.Type())

	tk := bodyTask(t, domain.TaskTypeRemoveBackground, domain.RemoveBackgroundBody{
		AssetID: source.Key,
	})

	result, err := handler.Execute(context.Background(), tk)
	require.NoError(t, err)

	require.Len(t, provider.RemoveBackgroundCalls, 1)
	assert.Equal(t, []byte("photo-bytes"), provider.RemoveBackgroundCalls[0].Image)
	assert.True(t, assets.Stored(result.AssetID))
}

func TestHandlers_PropagateProviderErrors(t *testing.T) {
	t.Parallel()

	provider := &mocks.MockImageProvider{
		Err: fmt.Errorf("%w: provider returned 500", generation.ErrTransientFailure),
	}

	handler := task.NewGenerateImageHandler(provider, &mocks.MockAssetStore{}, slog.Default())

	tk := bodyTask(t, domain.TaskTypeGenerateImage, domain.GenerateImageBody{Prompt: "x"})

	_, err := handler.Execute(context.Background(), tk)
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.True(t, generation.IsTransient(err))
}
