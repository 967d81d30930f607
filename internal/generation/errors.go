package generation

import "errors"

// Common errors returned by generation providers. The worker classifies
// failures through these sentinels: transient failures consume one retry
// and requeue, everything else fails the task permanently.
var (
	// ErrGenerationFailed is returned when a generation call fails for any
	// general, non-retriable reason.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidResponse is returned when the provider response cannot be
	// parsed or contains no usable output.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrContentBlocked is returned when the provider rejects the prompt or
	// source content via its safety filters. Never retried.
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrTransientFailure is returned for temporary errors (timeouts, 5xx,
	// quota exhaustion) that might resolve on retry.
	ErrTransientFailure = errors.New("transient provider error")

	// ErrInvalidParams is returned when the task parameters are unusable by
	// the provider. Bodies are validated at creation, so this indicates a
	// provider-side constraint; never retried.
	ErrInvalidParams = errors.New("invalid generation parameters")

	// ErrInvalidConfig is returned when the provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)

// IsTransient reports whether err should be retried rather than failing the
// task permanently.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}
