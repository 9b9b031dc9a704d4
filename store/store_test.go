package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloquyhq/colloquy/testutil"
	"github.com/colloquyhq/colloquy/types"
)

func testSnapshot(id, topic string, createdAt time.Time) *types.SessionSnapshot {
	return &types.SessionSnapshot{
		ID:           id,
		Topic:        topic,
		Participants: []string{types.SpeakerHuman, "a"},
		History: []types.Message{
			types.NewHumanMessage("an opening question"),
			types.NewMessage("a", "a considered response"),
		},
		Status:    types.StatusActive,
		Config:    types.DefaultSessionConfig(),
		CreatedAt: createdAt,
	}
}

// backends lists every ConversationStore implementation; each gets the
// same conformance run.
func backends(t *testing.T) map[string]ConversationStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]ConversationStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"redis":  NewRedisStoreWithClient(client, "test:"),
		"sqlite": sqliteStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			snap := testSnapshot("s1", "a topic", time.Now().UTC().Truncate(time.Millisecond))

			require.NoError(t, st.Save(ctx, snap))
			got, err := st.Load(ctx, "s1")
			require.NoError(t, err)

			assert.Equal(t, snap.ID, got.ID)
			assert.Equal(t, snap.Topic, got.Topic)
			assert.Equal(t, snap.Status, got.Status)
			assert.Equal(t, snap.Config, got.Config)
			require.Len(t, got.History, 2)
			assert.Equal(t, snap.History[0].Content, got.History[0].Content)
			assert.Equal(t, snap.History[1].Speaker, got.History[1].Speaker)
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			snap := testSnapshot("s1", "before", time.Now())
			require.NoError(t, st.Save(ctx, snap))

			snap.Topic = "after"
			snap.History = append(snap.History, types.NewMessage("a", "one more thought"))
			require.NoError(t, st.Save(ctx, snap))

			got, err := st.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "after", got.Topic)
			assert.Len(t, got.History, 3)

			summaries, err := st.ListSummaries(ctx)
			require.NoError(t, err)
			require.Len(t, summaries, 1, "replacing does not duplicate the listing")
			assert.Equal(t, 3, summaries[0].MessageCount)
		})
	}
}

func TestStoreLoadMissing(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			_, err := st.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			require.NoError(t, st.Save(ctx, testSnapshot("old", "old topic", base)))
			require.NoError(t, st.Save(ctx, testSnapshot("new", "new topic", base.Add(time.Minute))))

			summaries, err := st.ListSummaries(ctx)
			require.NoError(t, err)
			require.Len(t, summaries, 2)
			assert.Equal(t, "new", summaries[0].ID)
			assert.Equal(t, "old", summaries[1].ID)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			require.NoError(t, st.Save(ctx, testSnapshot("s1", "t", time.Now())))
			require.NoError(t, st.Delete(ctx, "s1"))

			_, err := st.Load(ctx, "s1")
			assert.ErrorIs(t, err, ErrNotFound)

			summaries, err := st.ListSummaries(ctx)
			require.NoError(t, err)
			assert.Empty(t, summaries)

			assert.NoError(t, st.Delete(ctx, "s1"), "deleting a missing id is not an error")
		})
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := testutil.TestContext(t)
	st := NewMemoryStore()
	require.NoError(t, st.Close())

	assert.ErrorIs(t, st.Save(ctx, testSnapshot("s1", "t", time.Now())), ErrStoreClosed)
	_, err := st.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := testutil.TestContext(t)
	dir := t.TempDir()

	st, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, testSnapshot("s1", "durable topic", time.Now())))
	require.NoError(t, st.Close())

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "durable topic", got.Topic)
}
