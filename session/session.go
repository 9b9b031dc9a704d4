package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/colloquyhq/colloquy/analytics"
	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/scheduler"
	"github.com/colloquyhq/colloquy/store"
	"github.com/colloquyhq/colloquy/types"
)

var tracer = otel.Tracer("github.com/colloquyhq/colloquy/session")

// Options configures a session beyond its topic. Zero delays take the
// scheduler defaults; negative delays disable the delay entirely, which
// is how tests run without pacing.
type Options struct {
	Config         types.SessionConfig
	Store          store.ConversationStore
	Sink           types.EventSink
	Rand           scheduler.RandSource
	Logger         *zap.Logger
	PacingDelay    time.Duration
	AutoRoundDelay time.Duration
}

// Session is one moderated conversation: identity, participant roster,
// transcript, status, config, and the analytics and scheduler bound to
// it one-to-one.
type Session struct {
	id           string
	topic        string
	participants []string
	createdAt    time.Time
	endedAt      *time.Time
	resumedAt    *time.Time

	history []types.Message
	status  types.SessionStatus
	config  types.SessionConfig
	active  map[string]struct{}

	analytics *analytics.ConversationAnalytics
	sched     *scheduler.Scheduler
	registry  *providers.Registry
	store     store.ConversationStore
	sink      types.EventSink
	logger    *zap.Logger

	pacingDelay    time.Duration
	autoRoundDelay time.Duration

	batchInFlight bool
	mu            sync.Mutex
}

// New creates an active session. All registered providers start in the
// active set; the participant roster lists the human first, then the
// providers in registration order.
func New(topic string, registry *providers.Registry, opts Options) *Session {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Sink == nil {
		opts.Sink = types.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Config == (types.SessionConfig{}) {
		opts.Config = types.DefaultSessionConfig()
	}
	if opts.PacingDelay == 0 {
		opts.PacingDelay = scheduler.DefaultPacingDelay
	}
	if opts.AutoRoundDelay == 0 {
		opts.AutoRoundDelay = scheduler.DefaultAutoRoundDelay
	}

	id := uuid.New().String()
	ids := registry.Identifiers()
	active := make(map[string]struct{}, len(ids))
	for _, p := range ids {
		active[p] = struct{}{}
	}

	logger := opts.Logger.With(zap.String("component", "session"), zap.String("session_id", id))
	return &Session{
		id:             id,
		topic:          topic,
		participants:   append([]string{types.SpeakerHuman}, ids...),
		createdAt:      time.Now(),
		status:         types.StatusActive,
		config:         opts.Config,
		active:         active,
		analytics:      analytics.New(opts.Logger),
		sched:          scheduler.New(id, opts.Rand, opts.Sink, opts.Logger),
		registry:       registry,
		store:          opts.Store,
		sink:           opts.Sink,
		logger:         logger,
		pacingDelay:    opts.PacingDelay,
		autoRoundDelay: opts.AutoRoundDelay,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Topic returns the conversation topic.
func (s *Session) Topic() string { return s.topic }

// Status returns the current lifecycle status.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// History returns a copy of the transcript.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.history...)
}

// AppendHumanMessage records a moderator message. It resets the
// scheduler's automated counters, re-arming moderation pause and the
// auto-round budget.
func (s *Session) AppendHumanMessage(ctx context.Context, text string) (types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Live() {
		return types.Message{}, types.NewError(types.ErrInvalidState, "session is not active")
	}
	if s.batchInFlight {
		return types.Message{}, types.NewError(types.ErrBatchInFlight, "cannot post while a batch is in flight")
	}
	msg, err := s.recordLocked(types.SpeakerHuman, text)
	if err != nil {
		return types.Message{}, err
	}
	s.sched.ResetOnHuman()
	s.saveLocked(ctx)
	return msg, nil
}

// AppendProviderMessage records a provider message supplied externally,
// for example transcripts imported from another system. Scheduler-driven
// batches use the same ingestion path internally.
func (s *Session) AppendProviderMessage(ctx context.Context, providerID, text string) (types.Message, error) {
	if providerID == types.SpeakerHuman {
		return types.Message{}, types.NewError(types.ErrInvalidArgument, "provider id cannot be the human marker")
	}
	if _, ok := s.registry.Get(providerID); !ok {
		return types.Message{}, types.NewError(types.ErrInvalidArgument, "unknown provider: "+providerID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Live() {
		return types.Message{}, types.NewError(types.ErrInvalidState, "session is not active")
	}
	if s.batchInFlight {
		return types.Message{}, types.NewError(types.ErrBatchInFlight, "cannot post while a batch is in flight")
	}
	msg, err := s.recordLocked(providerID, text)
	if err != nil {
		return types.Message{}, err
	}
	s.sched.NoteAutomated(1)
	s.saveLocked(ctx)
	return msg, nil
}

// recordLocked routes text through analytics, appends to history, and
// emits the message and analytics events. Caller holds s.mu.
func (s *Session) recordLocked(speaker, text string) (types.Message, error) {
	analysis, err := s.analytics.RecordMessage(speaker, text)
	if err != nil {
		return types.Message{}, err
	}
	msg := types.NewMessage(speaker, text).WithAnalysis(analysis)
	s.history = append(s.history, msg)

	sample := s.analytics.ConsensusSnapshot(s.history)
	s.sink.Emit(types.NewEvent(types.EventMessageAppended, s.id, map[string]any{
		"message_id": msg.ID,
		"speaker":    msg.Speaker,
		"content":    msg.Content,
	}))
	s.sink.Emit(types.NewEvent(types.EventAnalyticsUpdated, s.id, map[string]any{
		"sentiment":       string(analysis.Sentiment),
		"ideas":           len(analysis.Ideas),
		"consensus_level": sample.Level,
		"consensus_label": sample.SummaryLabel,
	}))
	return msg, nil
}

// saveLocked persists the current snapshot. A failed save is logged and
// surfaced as an event; in-memory state stays authoritative because
// losing the live conversation would be worse than losing one write's
// durability. Caller holds s.mu.
func (s *Session) saveLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Warn("snapshot save failed", zap.Error(err))
		s.sink.Emit(types.NewEvent(types.EventPersistenceFailure, s.id, map[string]any{
			"code":  string(types.ErrPersistenceFailure),
			"error": err.Error(),
		}))
	}
}

func (s *Session) snapshotLocked() *types.SessionSnapshot {
	return &types.SessionSnapshot{
		ID:           s.id,
		Topic:        s.topic,
		Participants: append([]string(nil), s.participants...),
		History:      append([]types.Message(nil), s.history...),
		Status:       s.status,
		Config:       s.config,
		CreatedAt:    s.createdAt,
		EndedAt:      s.endedAt,
		ResumedAt:    s.resumedAt,
	}
}

// Snapshot returns the persistable view of the session.
func (s *Session) Snapshot() *types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Export returns the transcript together with the analytics snapshot.
func (s *Session) Export() (*types.SessionSnapshot, analytics.Snapshot) {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, s.analytics.Export()
}

// SetActiveProviders replaces the active-provider set. Every id must be
// a registered provider. A batch already in flight keeps the set it
// started with; the new set applies from the next batch.
func (s *Session) SetActiveProviders(ids []string) error {
	for _, id := range ids {
		if _, ok := s.registry.Get(id); !ok {
			return types.NewError(types.ErrInvalidArgument, "unknown provider: "+id)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		active[id] = struct{}{}
	}
	s.active = active
	return nil
}

// ActiveProviders returns the active provider ids in registration order.
func (s *Session) ActiveProviders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Session) activeLocked() []string {
	out := make([]string, 0, len(s.active))
	for _, id := range s.registry.Identifiers() {
		if _, ok := s.active[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// UpdateConfig overlays a partial config change, effective on the next
// provider call.
func (s *Session) UpdateConfig(patch types.SessionConfigPatch) types.SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = patch.Apply(s.config)
	return s.config
}

// Config returns the current configuration.
func (s *Session) Config() types.SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// End moves the session to its terminal state. Scheduled continuations
// observe the status change and stop without appending.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == types.StatusEnded {
		return types.NewError(types.ErrInvalidState, "session already ended")
	}
	now := time.Now()
	s.status = types.StatusEnded
	s.endedAt = &now
	s.saveLocked(ctx)
	s.sink.Emit(types.NewEvent(types.EventSessionEnded, s.id, nil))
	s.logger.Info("session ended")
	return nil
}

// Resume reactivates an ended session with clean scheduler runtime
// state, regardless of where the original session left off.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != types.StatusEnded {
		return types.NewError(types.ErrInvalidState, "only an ended session can be resumed")
	}
	now := time.Now()
	s.status = types.StatusResumed
	s.resumedAt = &now
	s.sched.ResetOnHuman()
	s.saveLocked(ctx)
	s.sink.Emit(types.NewEvent(types.EventSessionResumed, s.id, nil))
	s.logger.Info("session resumed")
	return nil
}

// RunBatch executes one scheduler-driven batch of provider turns,
// including any automatic continuation rounds the scheduler grants.
// It returns when the scheduler decides to await human input, pause for
// moderation, or exhaust the auto-round budget, or when ctx is canceled
// or the session ends mid-flight.
//
// Only one batch may run per session at a time; a concurrent request is
// rejected rather than queued.
func (s *Session) RunBatch(ctx context.Context) error {
	s.mu.Lock()
	if !s.status.Live() {
		s.mu.Unlock()
		return types.NewError(types.ErrInvalidState, "session is not active")
	}
	if s.batchInFlight {
		s.mu.Unlock()
		return types.NewError(types.ErrBatchInFlight, "a batch is already in flight for this session")
	}
	s.batchInFlight = true
	s.mu.Unlock()

	s.sink.Emit(types.NewEvent(types.EventBatchStarted, s.id, nil))

	defer func() {
		s.mu.Lock()
		s.batchInFlight = false
		s.mu.Unlock()
	}()

	for {
		// Snapshot the provider set and config; moderator changes apply
		// from the next batch, never mid-batch.
		s.mu.Lock()
		active := s.activeLocked()
		cfg := s.config
		historyView := append([]types.Message(nil), s.history...)
		s.mu.Unlock()

		order, err := s.sched.SelectSpeakers(historyView, active)
		if err != nil {
			// A batch may run on a background context with only the
			// event stream visible to the moderator; surface the
			// refusal there, not just on the error return.
			s.sink.Emit(types.NewEvent(types.EventNoEligibleProviders, s.id, map[string]any{
				"code":  string(types.GetErrorCode(err)),
				"error": err.Error(),
			}))
			return err
		}

		if err := s.runSpeakers(ctx, order, cfg); err != nil {
			return err
		}

		switch s.sched.AfterBatch(cfg) {
		case scheduler.DecisionAutoRound:
			if err := s.sleep(ctx, s.autoRoundDelay); err != nil {
				return nil
			}
			if !s.Status().Live() {
				return nil
			}
		default:
			return nil
		}
	}
}

// runSpeakers invokes the selected providers strictly in order. One
// provider failing is reported and skipped; the rest of the batch still
// runs. Responses arriving after the session leaves the live state are
// discarded.
func (s *Session) runSpeakers(ctx context.Context, order []string, cfg types.SessionConfig) error {
	var limiter *rate.Limiter
	if s.pacingDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.pacingDelay), 1)
	}

	for _, providerID := range order {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if !s.Status().Live() {
			return nil
		}

		provider, ok := s.registry.Get(providerID)
		if !ok {
			// Deregistered since selection; treat as a provider failure.
			s.emitProviderError(providerID, types.NewError(types.ErrProviderFailure, "provider no longer registered"))
			continue
		}

		s.sink.Emit(types.NewEvent(types.EventProviderThinking, s.id, map[string]any{
			"provider": providerID,
		}))

		// The prompt includes messages emitted earlier in this same
		// batch, preserving sequential discourse coherence.
		s.mu.Lock()
		historyView := append([]types.Message(nil), s.history...)
		participants := append([]string(nil), s.participants...)
		s.mu.Unlock()

		prompt := providers.BuildPrompt(providerID, s.topic, participants, historyView, cfg.MaxTokens)

		reply, err := s.invoke(ctx, provider, prompt, providers.Context{
			Topic:        s.topic,
			Participants: participants,
			History:      historyView,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
		})
		if err != nil {
			s.emitProviderError(providerID, err)
			continue
		}

		s.mu.Lock()
		if !s.status.Live() {
			s.mu.Unlock()
			return nil
		}
		if _, err := s.recordLocked(providerID, reply); err != nil {
			s.mu.Unlock()
			s.emitProviderError(providerID, err)
			continue
		}
		s.sched.NoteAutomated(1)
		s.saveLocked(ctx)
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) invoke(ctx context.Context, p providers.ResponseProvider, prompt string, pctx providers.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "provider.respond",
		trace.WithAttributes(
			attribute.String("provider.id", p.Identifier()),
			attribute.String("session.id", s.id),
		))
	defer span.End()

	start := time.Now()
	reply, err := p.Respond(ctx, prompt, pctx)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	elapsed := time.Since(start)
	s.sink.Emit(types.NewEvent(types.EventProviderResponded, s.id, map[string]any{
		"provider":   p.Identifier(),
		"elapsed_ms": elapsed.Milliseconds(),
	}))
	s.logger.Debug("provider responded",
		zap.String("provider", p.Identifier()),
		zap.Duration("duration", elapsed),
	)
	return reply, nil
}

func (s *Session) emitProviderError(providerID string, err error) {
	s.logger.Warn("provider invocation failed",
		zap.String("provider", providerID),
		zap.Error(err),
	)
	s.sink.Emit(types.NewEvent(types.EventProviderError, s.id, map[string]any{
		"provider": providerID,
		"error":    err.Error(),
	}))
}

// sleep waits d or until ctx is canceled.
func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
