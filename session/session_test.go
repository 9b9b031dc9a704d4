package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/store"
	"github.com/colloquyhq/colloquy/testutil"
	"github.com/colloquyhq/colloquy/testutil/mocks"
	"github.com/colloquyhq/colloquy/types"
)

// newTestSession builds a session with zero delays, a recording sink and
// a deterministic randomness source.
func newTestSession(t *testing.T, cfg types.SessionConfig, mockProviders ...*mocks.MockProvider) (*Session, *mocks.RecordingSink) {
	t.Helper()
	registry := providers.NewRegistry()
	for _, p := range mockProviders {
		registry.Register(p)
	}
	sink := mocks.NewRecordingSink()
	sess := New("the nature of identity", registry, Options{
		Config:         cfg,
		Sink:           sink,
		Rand:           mocks.NewScriptedRand(),
		PacingDelay:    -1,
		AutoRoundDelay: -1,
	})
	return sess, sink
}

func noAutoRounds() types.SessionConfig {
	cfg := types.DefaultSessionConfig()
	cfg.AutoRoundsEnabled = false
	return cfg
}

func TestNewSessionDefaults(t *testing.T) {
	sess, _ := newTestSession(t, types.SessionConfig{},
		mocks.NewMockProvider("a"), mocks.NewMockProvider("b"))

	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, "the nature of identity", sess.Topic())
	assert.Equal(t, types.StatusActive, sess.Status())
	assert.Equal(t, types.DefaultSessionConfig(), sess.Config(), "zero config takes defaults")
	assert.Equal(t, []string{"a", "b"}, sess.ActiveProviders(), "all providers start active")

	snap := sess.Snapshot()
	assert.Equal(t, []string{types.SpeakerHuman, "a", "b"}, snap.Participants)
	assert.Empty(t, snap.History)
}

func TestAppendHumanMessage(t *testing.T) {
	sess, sink := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	msg, err := sess.AppendHumanMessage(ctx, "What is the concept of distributive justice about?")
	require.NoError(t, err)
	assert.True(t, msg.IsHuman())
	assert.NotNil(t, msg.Analysis, "ingestion attaches the analysis bundle")

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)

	assert.Len(t, sink.OfType(types.EventMessageAppended), 1)
	assert.Len(t, sink.OfType(types.EventAnalyticsUpdated), 1)
}

func TestAppendHumanMessageValidation(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "   ")
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))

	require.NoError(t, sess.End(ctx))
	_, err = sess.AppendHumanMessage(ctx, "too late")
	assert.Equal(t, types.ErrInvalidState, types.GetErrorCode(err))
}

func TestAppendProviderMessageValidation(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	_, err := sess.AppendProviderMessage(ctx, types.SpeakerHuman, "masquerading")
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))

	_, err = sess.AppendProviderMessage(ctx, "ghost", "never registered")
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))

	msg, err := sess.AppendProviderMessage(ctx, "a", "an imported response")
	require.NoError(t, err)
	assert.Equal(t, "a", msg.Speaker)
}

func TestRunBatchSingleRound(t *testing.T) {
	a := mocks.NewMockProvider("a").WithResponse("a considers the question carefully")
	b := mocks.NewMockProvider("b").WithResponse("b offers a counterpoint instead")
	sess, sink := newTestSession(t, noAutoRounds(), a, b)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "Is personal identity fixed?")
	require.NoError(t, err)

	require.NoError(t, sess.RunBatch(ctx))

	history := sess.History()
	require.Len(t, history, 3, "every active provider speaks in the first batch")
	assert.True(t, history[0].IsHuman())
	speakers := []string{history[1].Speaker, history[2].Speaker}
	assert.ElementsMatch(t, []string{"a", "b"}, speakers)

	assert.Len(t, sink.OfType(types.EventProviderThinking), 2)
	assert.Len(t, sink.OfType(types.EventMessageAppended), 3)
	assert.Empty(t, sink.OfType(types.EventProviderError))
}

func TestRunBatchPromptSeesEarlierBatchMessages(t *testing.T) {
	a := mocks.NewMockProvider("a").WithResponse("a speaks first in this exchange")
	b := mocks.NewMockProvider("b").WithResponse("b responds to what a said")
	sess, _ := newTestSession(t, noAutoRounds(), a, b)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "An opening question for everyone")
	require.NoError(t, err)
	require.NoError(t, sess.RunBatch(ctx))

	// Whichever provider went second saw a three-message transcript.
	var second *mocks.MockProvider
	if sess.History()[1].Speaker == "a" {
		second = b
	} else {
		second = a
	}
	calls := second.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Context.History, 2, "intra-batch messages are visible to later speakers")
}

func TestRunBatchAutoRoundsExhaust(t *testing.T) {
	cfg := types.DefaultSessionConfig()
	cfg.ModerationPauseThreshold = 100
	a := mocks.NewMockProvider("a")
	b := mocks.NewMockProvider("b")
	sess, sink := newTestSession(t, cfg, a, b)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "Please discuss amongst yourselves")
	require.NoError(t, err)
	require.NoError(t, sess.RunBatch(ctx))

	// First batch seats both providers; each auto round excludes the
	// previous speaker, leaving one seat.
	assert.Len(t, sess.History(), 5)
	assert.Len(t, sink.OfType(types.EventAutoRoundScheduled), 2)
	assert.Len(t, sink.OfType(types.EventAutoRoundsExhausted), 1)
}

func TestRunBatchModerationPause(t *testing.T) {
	cfg := types.DefaultSessionConfig()
	cfg.ModerationPauseThreshold = 2
	a := mocks.NewMockProvider("a")
	b := mocks.NewMockProvider("b")
	sess, sink := newTestSession(t, cfg, a, b)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "Please discuss amongst yourselves")
	require.NoError(t, err)
	require.NoError(t, sess.RunBatch(ctx))

	assert.Len(t, sess.History(), 3, "the pause fires before any auto round")
	assert.Len(t, sink.OfType(types.EventModerationPause), 1)
	assert.Empty(t, sink.OfType(types.EventAutoRoundScheduled))

	// A human message re-arms the window.
	_, err = sess.AppendHumanMessage(ctx, "A follow-up question to continue")
	require.NoError(t, err)
	require.NoError(t, sess.RunBatch(ctx))
	assert.Len(t, sink.OfType(types.EventModerationPause), 2)
}

func TestRunBatchPartialFailure(t *testing.T) {
	a := mocks.NewMockProvider("a").WithResponse("a delivers a fine answer here")
	b := mocks.NewMockProvider("b").WithError(errors.New("upstream exploded"))
	sess, sink := newTestSession(t, noAutoRounds(), a, b)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "A question both should answer")
	require.NoError(t, err)
	require.NoError(t, sess.RunBatch(ctx), "a provider failure does not abort the batch")

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[1].Speaker)

	errs := sink.OfType(types.EventProviderError)
	require.Len(t, errs, 1)
	assert.Equal(t, "b", errs[0].Data["provider"])
}

func TestRunBatchRequiresLiveSession(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)
	require.NoError(t, sess.End(ctx))

	err := sess.RunBatch(ctx)
	assert.Equal(t, types.ErrInvalidState, types.GetErrorCode(err))
}

func TestRunBatchNoEligibleProviders(t *testing.T) {
	sess, sink := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)
	require.NoError(t, sess.SetActiveProviders(nil))

	_, err := sess.AppendHumanMessage(ctx, "anyone out there listening today?")
	require.NoError(t, err)
	err = sess.RunBatch(ctx)
	assert.Equal(t, types.ErrNoEligibleProviders, types.GetErrorCode(err))

	// A batch triggered over the transport runs detached from the
	// request, so the refusal must also reach the event stream.
	refusals := sink.OfType(types.EventNoEligibleProviders)
	require.Len(t, refusals, 1)
	assert.Equal(t, string(types.ErrNoEligibleProviders), refusals[0].Data["code"])
}

func TestRunBatchMutualExclusion(t *testing.T) {
	gate := make(chan struct{})
	a := mocks.NewMockProvider("a").WithRespondFunc(
		func(ctx context.Context, prompt string, pctx providers.Context) (string, error) {
			<-gate
			return "a answers after the gate opens", nil
		})
	sess, _ := newTestSession(t, noAutoRounds(), a)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "A question that takes a while")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sess.RunBatch(ctx) }()

	testutil.AssertEventuallyTrue(t, func() bool { return a.CallCount() == 1 }, 5*time.Second)

	err = sess.RunBatch(ctx)
	assert.Equal(t, types.ErrBatchInFlight, types.GetErrorCode(err))
	_, err = sess.AppendHumanMessage(ctx, "interrupting mid-batch")
	assert.Equal(t, types.ErrBatchInFlight, types.GetErrorCode(err))

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, sess.History(), 2)
}

func TestRunBatchDiscardsReplyAfterEnd(t *testing.T) {
	var sess *Session
	a := mocks.NewMockProvider("a").WithRespondFunc(
		func(ctx context.Context, prompt string, pctx providers.Context) (string, error) {
			_ = sess.End(context.Background())
			return "a reply that must be discarded", nil
		})
	sess, _ = newTestSession(t, noAutoRounds(), a)
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "One last question before closing")
	require.NoError(t, err)
	require.NoError(t, sess.RunBatch(ctx))

	assert.Len(t, sess.History(), 1, "responses landing after end are dropped")
	assert.Equal(t, types.StatusEnded, sess.Status())
}

func TestSetActiveProviders(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(),
		mocks.NewMockProvider("a"), mocks.NewMockProvider("b"), mocks.NewMockProvider("c"))

	err := sess.SetActiveProviders([]string{"a", "ghost"})
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))
	assert.Equal(t, []string{"a", "b", "c"}, sess.ActiveProviders(), "failed update leaves the set untouched")

	require.NoError(t, sess.SetActiveProviders([]string{"c", "a"}))
	assert.Equal(t, []string{"a", "c"}, sess.ActiveProviders(), "registration order, not request order")
}

func TestUpdateConfig(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))

	maxTokens := 256
	got := sess.UpdateConfig(types.SessionConfigPatch{MaxTokens: &maxTokens})
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, types.DefaultSessionConfig().Temperature, got.Temperature, "untouched fields survive")
}

func TestEndAndResume(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	require.NoError(t, sess.End(ctx))
	assert.Equal(t, types.StatusEnded, sess.Status())
	assert.NotNil(t, sess.Snapshot().EndedAt)

	err := sess.End(ctx)
	assert.Equal(t, types.ErrInvalidState, types.GetErrorCode(err))

	require.NoError(t, sess.Resume(ctx))
	assert.Equal(t, types.StatusResumed, sess.Status())
	assert.NotNil(t, sess.Snapshot().ResumedAt)

	_, err = sess.AppendHumanMessage(ctx, "picking the thread back up now")
	assert.NoError(t, err, "a resumed session accepts input")

	err = sess.Resume(ctx)
	assert.Equal(t, types.ErrInvalidState, types.GetErrorCode(err), "only ended sessions resume")
}

func TestExportIncludesAnalytics(t *testing.T) {
	sess, _ := newTestSession(t, noAutoRounds(), mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	_, err := sess.AppendHumanMessage(ctx, "The concept of emergent order deserves attention")
	require.NoError(t, err)

	snap, ana := sess.Export()
	assert.Len(t, snap.History, 1)
	assert.Equal(t, 1, ana.Totals.Messages)
}

func TestSaveFailureEmitsPersistenceEvent(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(mocks.NewMockProvider("a"))
	sink := mocks.NewRecordingSink()

	st := store.NewMemoryStore()
	require.NoError(t, st.Close())

	sess := New("durability under failure", registry, Options{
		Config:         noAutoRounds(),
		Store:          st,
		Sink:           sink,
		PacingDelay:    -1,
		AutoRoundDelay: -1,
	})
	ctx := testutil.TestContext(t)

	msg, err := sess.AppendHumanMessage(ctx, "does this survive a dead store?")
	require.NoError(t, err, "in-memory state stays authoritative")
	assert.Equal(t, types.SpeakerHuman, msg.Speaker)

	failures := sink.OfType(types.EventPersistenceFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, string(types.ErrPersistenceFailure), failures[0].Data["code"])
	assert.Empty(t, sink.OfType(types.EventProviderError), "a failed save is not a provider error")
}
