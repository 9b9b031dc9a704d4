package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/types"
)

// MaxAutoRounds is the hard cap on automatic continuation batches per
// human turn.
const MaxAutoRounds = 2

// DefaultPacingDelay is the backpressure delay between provider
// invocations within a batch. Configurable; tests run with zero.
const DefaultPacingDelay = 3 * time.Second

// DefaultAutoRoundDelay separates a completed batch from its automatic
// continuation.
const DefaultAutoRoundDelay = 2 * time.Second

// ModerationSuggestion is the fixed hint attached to a moderation-pause
// notification.
const ModerationSuggestion = "Consider posing a follow-up question or steering the discussion before continuing."

// Decision is the scheduler's continuation verdict after a batch.
type Decision string

const (
	DecisionAwaitInput          Decision = "await_input"
	DecisionModerationPause     Decision = "moderation_pause"
	DecisionAutoRound           Decision = "auto_round"
	DecisionAutoRoundsExhausted Decision = "auto_rounds_exhausted"
)

// Scheduler holds the per-conversation runtime state of the turn
// orchestration engine. It is not safe for concurrent use; the owning
// session serializes access.
type Scheduler struct {
	sessionID string
	rng       RandSource
	sink      types.EventSink
	logger    *zap.Logger

	consecutiveAutomated int
	autoRounds           int
}

// New creates a scheduler for one conversation.
func New(sessionID string, rng RandSource, sink types.EventSink, logger *zap.Logger) *Scheduler {
	if rng == nil {
		rng = SystemRand()
	}
	if sink == nil {
		sink = types.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sessionID: sessionID,
		rng:       rng,
		sink:      sink,
		logger:    logger.With(zap.String("component", "scheduler"), zap.String("session_id", sessionID)),
	}
}

// ResetOnHuman zeroes both runtime counters. Called unconditionally when
// a human message is recorded, re-arming the moderation-pause window and
// the auto-round budget.
func (s *Scheduler) ResetOnHuman() {
	s.consecutiveAutomated = 0
	s.autoRounds = 0
}

// NoteAutomated adds the number of provider responses produced in a
// batch to the consecutive-automated counter.
func (s *Scheduler) NoteAutomated(n int) {
	s.consecutiveAutomated += n
}

// ConsecutiveAutomated returns provider responses since the last human
// message.
func (s *Scheduler) ConsecutiveAutomated() int { return s.consecutiveAutomated }

// AutoRounds returns completed automatic continuations since the last
// human message.
func (s *Scheduler) AutoRounds() int { return s.autoRounds }

// SelectSpeakers computes the speaking order for one batch.
//
// With a single active provider it must speak again even if it spoke
// last; that forced repeat is flagged but not an error. On the very
// first automated batch every active provider speaks once in uniformly
// random order. Otherwise the previous speaker is excluded from the
// batch entirely and the remaining providers are shuffled behind a
// randomly chosen opener.
func (s *Scheduler) SelectSpeakers(history []types.Message, active []string) ([]string, error) {
	if len(active) == 0 {
		return nil, types.NewError(types.ErrNoEligibleProviders, "no active providers for this conversation")
	}

	last := lastAutomatedSpeaker(history)

	if len(active) == 1 {
		if active[0] == last {
			s.logger.Info("forced repeat: only one active provider", zap.String("provider", active[0]))
			s.sink.Emit(types.NewEvent(types.EventForcedRepeat, s.sessionID, map[string]any{
				"provider": active[0],
			}))
		}
		return []string{active[0]}, nil
	}

	// Very first automated batch: only the opening human message exists.
	if len(history) == 1 {
		order := append([]string(nil), active...)
		s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		s.sink.Emit(types.NewEvent(types.EventRandomSelection, s.sessionID, map[string]any{
			"order": order,
		}))
		s.logger.Debug("first batch order chosen", zap.Strings("order", order))
		return order, nil
	}

	eligible := make([]string, 0, len(active))
	for _, p := range active {
		if p != last {
			eligible = append(eligible, p)
		}
	}
	// len(active) > 1 guarantees a non-empty eligible set.

	first := s.rng.IntN(len(eligible))
	order := []string{eligible[first]}
	rest := append([]string(nil), eligible[:first]...)
	rest = append(rest, eligible[first+1:]...)
	s.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	order = append(order, rest...)

	s.sink.Emit(types.NewEvent(types.EventRandomSelection, s.sessionID, map[string]any{
		"order":    order,
		"excluded": last,
	}))
	return order, nil
}

// AfterBatch decides what follows a completed batch. The moderation
// pause check runs first; the auto-round budget is only consulted when
// no pause triggered.
func (s *Scheduler) AfterBatch(cfg types.SessionConfig) Decision {
	if cfg.ModerationPauseThreshold > 0 && s.consecutiveAutomated >= cfg.ModerationPauseThreshold {
		s.sink.Emit(types.NewEvent(types.EventModerationPause, s.sessionID, map[string]any{
			"consecutive_automated": s.consecutiveAutomated,
			"suggestion":            ModerationSuggestion,
		}))
		s.logger.Info("moderation pause", zap.Int("consecutive_automated", s.consecutiveAutomated))
		return DecisionModerationPause
	}

	if !cfg.AutoRoundsEnabled {
		return DecisionAwaitInput
	}
	if s.autoRounds < MaxAutoRounds {
		s.autoRounds++
		s.sink.Emit(types.NewEvent(types.EventAutoRoundScheduled, s.sessionID, map[string]any{
			"round": s.autoRounds,
		}))
		return DecisionAutoRound
	}
	s.sink.Emit(types.NewEvent(types.EventAutoRoundsExhausted, s.sessionID, map[string]any{
		"rounds": s.autoRounds,
	}))
	return DecisionAutoRoundsExhausted
}

// lastAutomatedSpeaker returns the speaker of the most recent non-human
// message, or "" when none exists yet.
func lastAutomatedSpeaker(history []types.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].IsHuman() {
			return history[i].Speaker
		}
	}
	return ""
}
