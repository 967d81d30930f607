// Package mocks provides test doubles shared across package tests.
//
// Mocks here follow a common shape: exported Fn fields override behavior
// per test, default-value fields configure the canned response, and call
// counters support verification. The in-memory task store is the notable
// exception: it is a real, mutex-guarded implementation of store.TaskStore
// whose claim semantics match the production store, so concurrency tests
// exercise genuine contention rather than canned answers.
package mocks
