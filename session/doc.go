// Package session holds the per-conversation lifecycle root and the
// manager arena indexing live sessions by ID.
//
// A Session owns exactly one analytics instance and one scheduler for
// its in-memory lifetime. A single conversation is a single logical
// thread of control: a batch in flight holds the session's batch slot,
// providers are invoked strictly sequentially, and messages append in
// invocation-completion order with analytics recorded synchronously.
// Distinct sessions share no mutable state and run fully concurrently.
package session
