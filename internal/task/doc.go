// Package task implements the generative task worker pool: a polling loop
// that claims batches of tasks from the store, executes them concurrently
// against rate-limited external providers, and drives each task to a
// terminal state with bounded retries. It also hosts the periodic lifecycle
// maintenance jobs (stale-claim reclaim and terminal-task archival).
package task
