// Package generation provides interfaces and error types for interacting
// with external generative AI services. It abstracts the details of the
// provider API integration (Gemini), allowing the worker to execute image
// and video tasks without coupling to a specific external service.
package generation
