package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/store"
	"github.com/colloquyhq/colloquy/testutil"
	"github.com/colloquyhq/colloquy/testutil/mocks"
	"github.com/colloquyhq/colloquy/types"
)

func newTestManager(t *testing.T, st store.ConversationStore, mockProviders ...*mocks.MockProvider) *Manager {
	t.Helper()
	registry := providers.NewRegistry()
	for _, p := range mockProviders {
		registry.Register(p)
	}
	return NewManager(registry, ManagerOptions{
		Store:          st,
		Rand:           mocks.NewScriptedRand(),
		PacingDelay:    -1,
		AutoRoundDelay: -1,
	})
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(t, nil, mocks.NewMockProvider("a"))

	_, err := m.Create("", types.DefaultSessionConfig())
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))

	sess, err := m.Create("a topic worth discussing", types.DefaultSessionConfig())
	require.NoError(t, err)

	got, err := m.Get(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)

	_, err = m.Get("no-such-id")
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestManagerEvict(t *testing.T) {
	m := newTestManager(t, nil, mocks.NewMockProvider("a"))
	sess, err := m.Create("short-lived", types.DefaultSessionConfig())
	require.NoError(t, err)

	m.Evict(sess.ID())
	_, err = m.Get(sess.ID())
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestManagerListLive(t *testing.T) {
	m := newTestManager(t, nil, mocks.NewMockProvider("a"))
	_, err := m.Create("first topic", types.DefaultSessionConfig())
	require.NoError(t, err)
	_, err = m.Create("second topic", types.DefaultSessionConfig())
	require.NoError(t, err)

	live := m.ListLive()
	assert.Len(t, live, 2)
}

func TestManagerListStored(t *testing.T) {
	st := store.NewMemoryStore()
	m := newTestManager(t, st, mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	sess, err := m.Create("persisted topic", types.DefaultSessionConfig())
	require.NoError(t, err)
	_, err = sess.AppendHumanMessage(ctx, "a message so the session gets saved")
	require.NoError(t, err)

	stored, err := m.ListStored(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, sess.ID(), stored[0].ID)
	assert.Equal(t, 1, stored[0].MessageCount)
}

func TestManagerResumeLiveSession(t *testing.T) {
	m := newTestManager(t, nil, mocks.NewMockProvider("a"))
	ctx := testutil.TestContext(t)

	sess, err := m.Create("resumable topic", types.DefaultSessionConfig())
	require.NoError(t, err)
	require.NoError(t, sess.End(ctx))

	got, err := m.Resume(ctx, sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got, "live sessions resume in place")
	assert.Equal(t, types.StatusResumed, got.Status())
}

func TestManagerResumeFromStore(t *testing.T) {
	st := store.NewMemoryStore()
	a := mocks.NewMockProvider("a")
	m := newTestManager(t, st, a)
	ctx := testutil.TestContext(t)

	sess, err := m.Create("the ship of theseus", types.DefaultSessionConfig())
	require.NoError(t, err)
	id := sess.ID()

	_, err = sess.AppendHumanMessage(ctx, "If every plank is replaced, is it the same ship?")
	require.NoError(t, err)
	_, err = sess.AppendProviderMessage(ctx, "a", "I argue that identity is a matter of continuity, not material")
	require.NoError(t, err)
	require.NoError(t, sess.End(ctx))
	m.Evict(id)

	resumed, err := m.Resume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, resumed.ID())
	assert.Equal(t, types.StatusResumed, resumed.Status())

	history := resumed.History()
	require.Len(t, history, 2, "the transcript survives the round trip")
	assert.Equal(t, types.SpeakerHuman, history[0].Speaker)
	assert.Equal(t, "a", history[1].Speaker)

	_, ana := resumed.Export()
	assert.Equal(t, 2, ana.Totals.Messages, "analytics are rebuilt by replay")
	assert.NotZero(t, ana.Totals.TrackedIdeas)

	// The arena serves the rebuilt session from memory now.
	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, resumed, got)
}

func TestManagerResumeMissing(t *testing.T) {
	m := newTestManager(t, nil, mocks.NewMockProvider("a"))
	_, err := m.Resume(testutil.TestContext(t), "never-existed")
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

// Replay equivalence end to end: a resumed session's analytics match a
// session that lived through the same transcript.
func TestManagerResumeReplayEquivalence(t *testing.T) {
	st := store.NewMemoryStore()
	a := mocks.NewMockProvider("a").WithResponses(
		"I argue that freedom is the absence of external constraint",
		"The concept of positive liberty complicates that picture",
	)
	m := newTestManager(t, st, a)
	ctx := testutil.TestContext(t)

	sess, err := m.Create("two concepts of liberty", types.DefaultSessionConfig())
	require.NoError(t, err)
	_, err = sess.AppendHumanMessage(ctx, "What do we mean when we say someone is free?")
	require.NoError(t, err)
	_, err = sess.AppendProviderMessage(ctx, "a", "I argue that freedom is the absence of external constraint")
	require.NoError(t, err)

	_, liveAna := sess.Export()
	require.NoError(t, sess.End(ctx))
	m.Evict(sess.ID())

	resumed, err := m.Resume(ctx, sess.ID())
	require.NoError(t, err)
	_, replayAna := resumed.Export()

	assert.Equal(t, liveAna.Totals, replayAna.Totals)
	assert.Equal(t, liveAna.WordCloud, replayAna.WordCloud)
	assert.Equal(t, liveAna.SentimentDistribution, replayAna.SentimentDistribution)
	require.Equal(t, len(liveAna.TopIdeas), len(replayAna.TopIdeas))
	for i := range liveAna.TopIdeas {
		assert.Equal(t, liveAna.TopIdeas[i].CanonicalText, replayAna.TopIdeas[i].CanonicalText)
		assert.Equal(t, liveAna.TopIdeas[i].OccurrenceCount, replayAna.TopIdeas[i].OccurrenceCount)
	}
}
