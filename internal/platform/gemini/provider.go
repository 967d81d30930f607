// Package gemini implements the generation provider interfaces using
// Google's Gemini API (Imagen for images, Veo for video).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jiweiyuan/muse/internal/config"
	"github.com/jiweiyuan/muse/internal/generation"
	"google.golang.org/genai"
)

// videoPollInterval is how often a pending video operation is polled.
// Veo operations routinely take minutes; the queue's staleness window is
// the overall timeout, not this interval.
const videoPollInterval = 10 * time.Second

// GeminiProvider implements generation.ImageProvider and
// generation.VideoProvider against the Gemini API.
type GeminiProvider struct {
	logger     *slog.Logger
	client     *genai.Client
	imageModel string
	videoModel string
}

// NewGeminiProvider creates a new GeminiProvider with the provided configuration.
// Returns an error if the configuration is invalid or the client cannot be built.
func NewGeminiProvider(ctx context.Context, log *slog.Logger, cfg config.GenConfig) (*GeminiProvider, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ImageModel == "" || cfg.VideoModel == "" {
		return nil, fmt.Errorf("%w: model names cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiProvider{
		logger:     log.With("component", "gemini_provider"),
		client:     client,
		imageModel: cfg.ImageModel,
		videoModel: cfg.VideoModel,
	}, nil
}

// GenerateImage creates an image from a text prompt using the Imagen model.
func (p *GeminiProvider) GenerateImage(ctx context.Context, params generation.GenerateImageParams) (*generation.Artifact, error) {
	prompt := params.Prompt
	if params.Style != "" {
		prompt = fmt.Sprintf("%s, in the style of %s", prompt, params.Style)
	}

	p.logger.InfoContext(ctx, "calling image generation",
		"model", p.imageModel,
		"prompt_length", len(prompt))

	resp, err := p.client.Models.GenerateImages(ctx, p.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, mapAPIError(err)
	}

	return artifactFromImages(resp.GeneratedImages, params.Width, params.Height)
}

// UpscaleImage increases the resolution of an existing image.
func (p *GeminiProvider) UpscaleImage(ctx context.Context, params generation.UpscaleParams) (*generation.Artifact, error) {
	factor := params.Factor
	if factor != 2 && factor != 4 {
		factor = 2
	}

	p.logger.InfoContext(ctx, "calling image upscale",
		"model", p.imageModel,
		"factor", factor,
		"source_bytes", len(params.Image))

	image := &genai.Image{
		ImageBytes: params.Image,
		MIMEType:   params.MIMEType,
	}

	resp, err := p.client.Models.UpscaleImage(ctx, p.imageModel, image,
		fmt.Sprintf("x%d", factor), &genai.UpscaleImageConfig{})
	if err != nil {
		return nil, mapAPIError(err)
	}

	return artifactFromImages(resp.GeneratedImages, 0, 0)
}

// RemoveBackground isolates the subject of an existing image using a
// background-mask edit.
func (p *GeminiProvider) RemoveBackground(ctx context.Context, params generation.RemoveBackgroundParams) (*generation.Artifact, error) {
	p.logger.InfoContext(ctx, "calling background removal",
		"model", p.imageModel,
		"source_bytes", len(params.Image))

	refImages := []genai.ReferenceImage{
		&genai.RawReferenceImage{
			ReferenceImage: &genai.Image{
				ImageBytes: params.Image,
				MIMEType:   params.MIMEType,
			},
			ReferenceID: 1,
		},
		&genai.MaskReferenceImage{
			ReferenceID: 2,
			Config: &genai.MaskReferenceConfig{
				MaskMode: genai.MaskReferenceModeMaskModeBackground,
			},
		},
	}

	resp, err := p.client.Models.EditImage(ctx, p.imageModel,
		"remove the background, keep only the subject on a transparent background",
		refImages, &genai.EditImageConfig{
			EditMode: genai.EditModeInpaintRemoval,
		})
	if err != nil {
		return nil, mapAPIError(err)
	}

	return artifactFromImages(resp.GeneratedImages, 0, 0)
}

// GenerateVideo creates a video from a text prompt, optionally seeded with a
// source image. The Veo operation is long running; this call polls until it
// completes or ctx is cancelled.
func (p *GeminiProvider) GenerateVideo(ctx context.Context, params generation.GenerateVideoParams) (*generation.Artifact, error) {
	var seed *genai.Image
	if len(params.SourceImage) > 0 {
		seed = &genai.Image{ImageBytes: params.SourceImage, MIMEType: "image/png"}
	}

	p.logger.InfoContext(ctx, "starting video generation",
		"model", p.videoModel,
		"prompt_length", len(params.Prompt),
		"has_seed_image", seed != nil)

	op, err := p.client.Models.GenerateVideos(ctx, p.videoModel, params.Prompt, seed,
		&genai.GenerateVideosConfig{})
	if err != nil {
		return nil, mapAPIError(err)
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		case <-time.After(videoPollInterval):
		}

		op, err = p.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, mapAPIError(err)
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("%w: no video generated", generation.ErrInvalidResponse)
	}

	video := op.Response.GeneratedVideos[0].Video
	if video == nil || len(video.VideoBytes) == 0 {
		return nil, fmt.Errorf("%w: empty video in response", generation.ErrInvalidResponse)
	}

	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	return &generation.Artifact{
		Data:            video.VideoBytes,
		MIMEType:        mimeType,
		DurationSeconds: params.DurationSeconds,
	}, nil
}

// artifactFromImages converts a generated image list into an Artifact,
// validating that the provider actually produced output.
func artifactFromImages(images []*genai.GeneratedImage, width, height int) (*generation.Artifact, error) {
	if len(images) == 0 || images[0].Image == nil || len(images[0].Image.ImageBytes) == 0 {
		return nil, fmt.Errorf("%w: no image generated", generation.ErrInvalidResponse)
	}

	image := images[0].Image
	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &generation.Artifact{
		Data:     image.ImageBytes,
		MIMEType: mimeType,
		Width:    width,
		Height:   height,
	}, nil
}

// mapAPIError translates Gemini API failures into the generation package's
// error taxonomy. Rate limiting and server-side failures are transient;
// safety blocks and bad requests are permanent.
func mapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		case apiErr.Code == 400:
			return fmt.Errorf("%w: %v", generation.ErrInvalidParams, err)
		case apiErr.Code == 403:
			return fmt.Errorf("%w: %v", generation.ErrContentBlocked, err)
		}
		return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	// Network-level failures without a structured code are worth retrying.
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}
