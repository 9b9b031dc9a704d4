package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/analytics"
	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/scheduler"
	"github.com/colloquyhq/colloquy/store"
	"github.com/colloquyhq/colloquy/types"
)

// Manager is the session arena: live sessions indexed by ID with
// explicit create, get, evict, and resume operations. No process-wide
// registry exists outside it.
type Manager struct {
	sessions map[string]*Session
	registry *providers.Registry
	store    store.ConversationStore
	sink     types.EventSink
	rng      scheduler.RandSource
	logger   *zap.Logger

	pacingDelay    time.Duration
	autoRoundDelay time.Duration

	mu sync.RWMutex
}

// ManagerOptions configures the arena.
type ManagerOptions struct {
	Store          store.ConversationStore
	Sink           types.EventSink
	Rand           scheduler.RandSource
	Logger         *zap.Logger
	PacingDelay    time.Duration
	AutoRoundDelay time.Duration
}

// NewManager creates the arena.
func NewManager(registry *providers.Registry, opts ManagerOptions) *Manager {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Sink == nil {
		opts.Sink = types.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PacingDelay == 0 {
		opts.PacingDelay = scheduler.DefaultPacingDelay
	}
	if opts.AutoRoundDelay == 0 {
		opts.AutoRoundDelay = scheduler.DefaultAutoRoundDelay
	}
	return &Manager{
		sessions:       make(map[string]*Session),
		registry:       registry,
		store:          opts.Store,
		sink:           opts.Sink,
		rng:            opts.Rand,
		logger:         opts.Logger.With(zap.String("component", "session_manager")),
		pacingDelay:    opts.PacingDelay,
		autoRoundDelay: opts.AutoRoundDelay,
	}
}

// Create starts a new conversation on topic.
func (m *Manager) Create(topic string, cfg types.SessionConfig) (*Session, error) {
	if topic == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "topic must be non-empty")
	}
	sess := New(topic, m.registry, Options{
		Config:         cfg,
		Store:          m.store,
		Sink:           m.sink,
		Rand:           m.rng,
		Logger:         m.logger,
		PacingDelay:    m.pacingDelay,
		AutoRoundDelay: m.autoRoundDelay,
	})
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()
	m.sink.Emit(types.NewEvent(types.EventSessionStarted, sess.ID(), map[string]any{"topic": topic}))
	m.logger.Info("session created", zap.String("session_id", sess.ID()), zap.String("topic", topic))
	return sess, nil
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, types.NewError(types.ErrSessionNotFound, "no live session with id "+id)
	}
	return sess, nil
}

// Evict drops a session from memory. Its analytics and scheduler state
// are discarded; the stored snapshot can later reconstruct both.
func (m *Manager) Evict(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// ListLive returns summaries of all in-memory sessions.
func (m *Manager) ListLive() []types.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.SessionSummary, 0, len(m.sessions))
	for _, sess := range m.sessions {
		snap := sess.Snapshot()
		out = append(out, types.SessionSummary{
			ID:           snap.ID,
			Topic:        snap.Topic,
			Status:       snap.Status,
			MessageCount: len(snap.History),
			CreatedAt:    snap.CreatedAt,
		})
	}
	return out
}

// ListStored returns summaries of all persisted sessions.
func (m *Manager) ListStored(ctx context.Context) ([]types.SessionSummary, error) {
	summaries, err := m.store.ListSummaries(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrPersistenceFailure, "list stored sessions").WithCause(err)
	}
	return summaries, nil
}

// Resume brings a conversation back to life. A live ended session is
// resumed in place; otherwise the snapshot is loaded from the store and
// the analytics state reconstructed by replaying the transcript through
// the normal ingestion path. The reconstructed snapshot is
// indistinguishable from the live one at the time of the last save.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	sess, live := m.sessions[id]
	m.mu.RUnlock()

	if live {
		if err := sess.Resume(ctx); err != nil {
			return nil, err
		}
		return sess, nil
	}

	snap, err := m.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, types.NewError(types.ErrSessionNotFound, "no stored session with id "+id)
	}
	if err != nil {
		return nil, types.NewError(types.ErrPersistenceFailure, "load session "+id).WithCause(err)
	}

	sess = m.rebuild(snap)
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	if err := sess.Resume(ctx); err != nil {
		// Loaded snapshot was still active (e.g. process crash); treat
		// as already live rather than failing the resume.
		if types.GetErrorCode(err) != types.ErrInvalidState {
			return nil, err
		}
	}
	m.logger.Info("session resumed from store",
		zap.String("session_id", id),
		zap.Int("replayed_messages", len(snap.History)),
	)
	return sess, nil
}

// rebuild reconstructs a Session from its snapshot, replaying history
// into a fresh analytics instance in order. Scheduler runtime state
// starts clean regardless of where the original left off.
func (m *Manager) rebuild(snap *types.SessionSnapshot) *Session {
	ana := analytics.New(m.logger)
	history := make([]types.Message, 0, len(snap.History))
	for _, msg := range snap.History {
		analysis, err := ana.RecordMessage(msg.Speaker, msg.Content)
		if err != nil {
			// Snapshots only hold messages that passed ingestion once;
			// skip anything that no longer does rather than fail resume.
			m.logger.Warn("replay skipped message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		ana.ConsensusSnapshot(append(history, msg.WithAnalysis(analysis)))
		history = append(history, msg.WithAnalysis(analysis))
	}

	active := make(map[string]struct{})
	for _, id := range m.registry.Identifiers() {
		active[id] = struct{}{}
	}

	status := snap.Status
	if status == "" {
		status = types.StatusActive
	}

	return &Session{
		id:             snap.ID,
		topic:          snap.Topic,
		participants:   append([]string(nil), snap.Participants...),
		createdAt:      snap.CreatedAt,
		endedAt:        snap.EndedAt,
		resumedAt:      snap.ResumedAt,
		history:        history,
		status:         status,
		config:         snap.Config,
		active:         active,
		analytics:      ana,
		sched:          scheduler.New(snap.ID, m.rng, m.sink, m.logger),
		registry:       m.registry,
		store:          m.store,
		sink:           m.sink,
		logger:         m.logger.With(zap.String("component", "session"), zap.String("session_id", snap.ID)),
		pacingDelay:    m.pacingDelay,
		autoRoundDelay: m.autoRoundDelay,
	}
}
