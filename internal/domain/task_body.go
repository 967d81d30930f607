package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidTaskBody indicates that a task body failed schema validation
// for its task type. Bodies are validated once, at creation time.
var ErrInvalidTaskBody = errors.New("invalid task body")

// GenerateImageBody is the payload for generate_image tasks.
type GenerateImageBody struct {
	Prompt string `json:"prompt"          validate:"required,min=1,max=4000"`
	Width  int    `json:"width,omitempty"  validate:"omitempty,min=64,max=4096"`
	Height int    `json:"height,omitempty" validate:"omitempty,min=64,max=4096"`
	Style  string `json:"style,omitempty"  validate:"omitempty,max=200"`
}

// GenerateVideoBody is the payload for generate_video tasks.
type GenerateVideoBody struct {
	Prompt          string `json:"prompt"                    validate:"required,min=1,max=4000"`
	DurationSeconds int    `json:"duration_seconds,omitempty" validate:"omitempty,min=1,max=60"`
	SourceAssetID   string `json:"source_asset_id,omitempty"  validate:"omitempty,max=512"`
}

// ImageUpscaleBody is the payload for image_upscale tasks.
type ImageUpscaleBody struct {
	AssetID string `json:"asset_id"         validate:"required,max=512"`
	Factor  int    `json:"factor,omitempty" validate:"omitempty,oneof=2 4"`
}

// RemoveBackgroundBody is the payload for image_remove_background tasks.
type RemoveBackgroundBody struct {
	AssetID string `json:"asset_id" validate:"required,max=512"`
}

// bodyValidator is shared across ValidateTaskBody calls; validator.Validate
// is safe for concurrent use.
var bodyValidator = validator.New()

// ValidateTaskBody checks that the raw body decodes into the schema for the
// given task type. Unknown fields are rejected so malformed payloads never
// enter the queue. Returns ErrInvalidTaskBody (wrapped) on any failure.
func ValidateTaskBody(taskType TaskType, body json.RawMessage) error {
	target, err := newBodyFor(taskType)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTaskBody, err)
	}

	if err := bodyValidator.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTaskBody, err)
	}

	return nil
}

// DecodeTaskBody decodes the raw body of a task into the typed payload for
// its type. The worker uses this after claiming; bodies were validated at
// creation so a decode failure here is a permanent error.
func DecodeTaskBody(task *Task, v interface{}) error {
	if err := json.Unmarshal(task.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTaskBody, err)
	}
	return nil
}

func newBodyFor(taskType TaskType) (interface{}, error) {
	switch taskType {
	case TaskTypeGenerateImage:
		return &GenerateImageBody{}, nil
	case TaskTypeGenerateVideo:
		return &GenerateVideoBody{}, nil
	case TaskTypeImageUpscale:
		return &ImageUpscaleBody{}, nil
	case TaskTypeRemoveBackground:
		return &RemoveBackgroundBody{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, taskType)
	}
}
