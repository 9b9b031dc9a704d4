// Package store provides the ConversationStore capability: persistence
// of session snapshots so conversations can be listed, resumed, and
// reconstructed after eviction.
//
// Analytics state is never persisted; on load the session manager
// replays the stored history through the analytics ingestion path, which
// is deterministic and therefore reproduces the live state.
//
// Supported backends: memory (development and tests), file (single-node
// deployments), redis (distributed deployments), sqlite (single-node
// with queryable history).
package store

import (
	"context"
	"errors"

	"github.com/colloquyhq/colloquy/types"
)

// Common errors
var (
	ErrNotFound    = errors.New("session not found")
	ErrStoreClosed = errors.New("store is closed")
)

// BackendType selects the storage backend.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
	BackendSQLite BackendType = "sqlite"
)

// ConversationStore persists session snapshots keyed by session ID.
type ConversationStore interface {
	// Save writes or replaces the snapshot for its session ID.
	Save(ctx context.Context, snap *types.SessionSnapshot) error

	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*types.SessionSnapshot, error)

	// ListSummaries returns lightweight descriptors for all stored
	// sessions, most recently created first.
	ListSummaries(ctx context.Context) ([]types.SessionSummary, error)

	// Delete removes the snapshot for id. Deleting a missing id is not
	// an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

func summarize(snap *types.SessionSnapshot) types.SessionSummary {
	return types.SessionSummary{
		ID:           snap.ID,
		Topic:        snap.Topic,
		Status:       snap.Status,
		MessageCount: len(snap.History),
		CreatedAt:    snap.CreatedAt,
	}
}
