package generation

import "context"

// Artifact is the raw output of a generation call: the produced bytes plus
// the metadata the worker persists alongside the stored asset.
type Artifact struct {
	Data            []byte
	MIMEType        string
	Width           int
	Height          int
	DurationSeconds int
}

// GenerateImageParams are the provider inputs for a text-to-image call.
type GenerateImageParams struct {
	Prompt string
	Width  int
	Height int
	Style  string
}

// GenerateVideoParams are the provider inputs for a video generation call.
// SourceImage, when non-nil, seeds an image-to-video generation.
type GenerateVideoParams struct {
	Prompt          string
	DurationSeconds int
	SourceImage     []byte
}

// UpscaleParams are the provider inputs for an image upscale call.
type UpscaleParams struct {
	Image    []byte
	MIMEType string
	Factor   int
}

// RemoveBackgroundParams are the provider inputs for a background removal call.
type RemoveBackgroundParams struct {
	Image    []byte
	MIMEType string
}

// ImageProvider defines the boundary to an external image generation service.
// Implementations return errors wrapping the sentinels in errors.go so the
// worker can decide retriability.
type ImageProvider interface {
	// GenerateImage creates an image from a text prompt.
	GenerateImage(ctx context.Context, params GenerateImageParams) (*Artifact, error)

	// UpscaleImage increases the resolution of an existing image.
	UpscaleImage(ctx context.Context, params UpscaleParams) (*Artifact, error)

	// RemoveBackground isolates the subject of an existing image.
	RemoveBackground(ctx context.Context, params RemoveBackgroundParams) (*Artifact, error)
}

// VideoProvider defines the boundary to an external video generation service.
type VideoProvider interface {
	// GenerateVideo creates a video from a text prompt, optionally seeded
	// with a source image. Implementations block until the provider's
	// long-running operation finishes or ctx is cancelled.
	GenerateVideo(ctx context.Context, params GenerateVideoParams) (*Artifact, error)
}
