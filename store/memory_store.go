package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/colloquyhq/colloquy/types"
)

// MemoryStore is the in-memory ConversationStore. Suitable for
// development and tests; data is lost on restart.
type MemoryStore struct {
	snapshots map[string][]byte
	mu        sync.RWMutex
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

// Save implements ConversationStore. Snapshots are stored serialized so
// callers cannot alias the stored history slice.
func (s *MemoryStore) Save(ctx context.Context, snap *types.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.snapshots[snap.ID] = data
	return nil
}

// Load implements ConversationStore.
func (s *MemoryStore) Load(ctx context.Context, id string) (*types.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	data, ok := s.snapshots[id]
	if !ok {
		return nil, ErrNotFound
	}
	var snap types.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSummaries implements ConversationStore.
func (s *MemoryStore) ListSummaries(ctx context.Context) ([]types.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]types.SessionSummary, 0, len(s.snapshots))
	for _, data := range s.snapshots {
		var snap types.SessionSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		out = append(out, summarize(&snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete implements ConversationStore.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.snapshots, id)
	return nil
}

// Close implements ConversationStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
