package metrics

import (
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/colloquyhq/colloquy/types"
)

// promauto registers against the default registry, so the whole file
// shares one collector under a test-only namespace.
var collector = NewCollector("colloquy_test")

func TestCollectorCounters(t *testing.T) {
	createdBefore := promtest.ToFloat64(collector.sessionsCreated)
	endedBefore := promtest.ToFloat64(collector.sessionsEnded)
	batchesBefore := promtest.ToFloat64(collector.batchesRun)

	collector.SessionCreated()
	collector.SessionCreated()
	collector.SessionEnded()
	collector.BatchRun()
	collector.ProviderCall("mill", 120*time.Millisecond)
	collector.HTTPRequest("GET", "/v1/conversations", "200", 5*time.Millisecond)

	assert.Equal(t, createdBefore+2, promtest.ToFloat64(collector.sessionsCreated))
	assert.Equal(t, endedBefore+1, promtest.ToFloat64(collector.sessionsEnded))
	assert.Equal(t, batchesBefore+1, promtest.ToFloat64(collector.batchesRun))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.providerCalls.WithLabelValues("mill")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.httpRequests.WithLabelValues("GET", "/v1/conversations", "200")))
}

func TestCollectorObserve(t *testing.T) {
	collector.Observe(types.NewEvent(types.EventSessionStarted, "s", map[string]any{"topic": "free will"}))
	collector.Observe(types.NewEvent(types.EventSessionEnded, "s", nil))
	collector.Observe(types.NewEvent(types.EventSessionResumed, "s", nil))
	collector.Observe(types.NewEvent(types.EventBatchStarted, "s", nil))
	collector.Observe(types.NewEvent(types.EventProviderResponded, "s", map[string]any{"provider": "kant", "elapsed_ms": int64(40)}))
	collector.Observe(types.NewEvent(types.EventMessageAppended, "s", map[string]any{"speaker": types.SpeakerHuman}))
	collector.Observe(types.NewEvent(types.EventMessageAppended, "s", map[string]any{"speaker": "mill"}))
	collector.Observe(types.NewEvent(types.EventProviderError, "s", map[string]any{"provider": "mill"}))
	collector.Observe(types.NewEvent(types.EventPersistenceFailure, "s", nil))
	collector.Observe(types.NewEvent(types.EventModerationPause, "s", nil))
	collector.Observe(types.NewEvent(types.EventAutoRoundScheduled, "s", nil))
	collector.Observe(types.NewEvent(types.EventAutoRoundsExhausted, "s", nil))
	// Event types the collector does not track are ignored.
	collector.Observe(types.NewEvent(types.EventProviderThinking, "s", nil))

	assert.Equal(t, 1.0, promtest.ToFloat64(collector.messagesAppended.WithLabelValues("human")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.messagesAppended.WithLabelValues("provider")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.providerErrors.WithLabelValues("mill")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.moderationPauses))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.autoRounds))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.autoRoundsExhausted))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.persistenceFailures))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.sessionsResumed))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.providerCalls.WithLabelValues("kant")))
}
