// Package events provides a lightweight in-process event system for task
// lifecycle notifications. It decouples the worker, which produces
// completion and failure events, from consumers such as the canvas
// synchronization layer that updates shapes when their task finishes.
package events
