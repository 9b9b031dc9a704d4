// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/colloquyhq/colloquy/types"
)

// Collector registers and updates the engine's metric families.
type Collector struct {
	sessionsCreated  prometheus.Counter
	sessionsEnded    prometheus.Counter
	sessionsResumed  prometheus.Counter
	messagesAppended *prometheus.CounterVec

	batchesRun       prometheus.Counter
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	moderationPauses    prometheus.Counter
	autoRounds          prometheus.Counter
	autoRoundsExhausted prometheus.Counter
	persistenceFailures prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates and registers the metric families under the
// given namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		sessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total conversations started",
		}),
		sessionsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total conversations ended",
		}),
		sessionsResumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_resumed_total",
			Help:      "Total conversations resumed",
		}),
		messagesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages appended to transcripts",
		}, []string{"speaker_class"}),
		batchesRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_run_total",
			Help:      "Scheduler batches executed",
		}),
		providerCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider invocations",
		}, []string{"provider"}),
		providerDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider invocation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		providerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Failed provider invocations",
		}, []string{"provider"}),
		moderationPauses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_pauses_total",
			Help:      "Moderation pauses triggered",
		}),
		autoRounds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_rounds_total",
			Help:      "Automatic continuation rounds scheduled",
		}),
		autoRoundsExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_rounds_exhausted_total",
			Help:      "Auto-round budgets exhausted",
		}),
		persistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed snapshot saves",
		}),
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// SessionCreated increments the created counter.
func (c *Collector) SessionCreated() { c.sessionsCreated.Inc() }

// SessionEnded increments the ended counter.
func (c *Collector) SessionEnded() { c.sessionsEnded.Inc() }

// SessionResumed increments the resumed counter.
func (c *Collector) SessionResumed() { c.sessionsResumed.Inc() }

// BatchRun increments the batch counter.
func (c *Collector) BatchRun() { c.batchesRun.Inc() }

// ProviderCall records one provider invocation and its latency.
func (c *Collector) ProviderCall(provider string, d time.Duration) {
	c.providerCalls.WithLabelValues(provider).Inc()
	c.providerDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// HTTPRequest records one served request.
func (c *Collector) HTTPRequest(method, path, status string, d time.Duration) {
	c.httpRequests.WithLabelValues(method, path, status).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Observe lets the collector consume engine events as an EventSink,
// keeping the scheduler and session packages free of metrics coupling.
func (c *Collector) Observe(e types.Event) {
	switch e.Type {
	case types.EventSessionStarted:
		c.sessionsCreated.Inc()
	case types.EventSessionEnded:
		c.sessionsEnded.Inc()
	case types.EventSessionResumed:
		c.sessionsResumed.Inc()
	case types.EventBatchStarted:
		c.batchesRun.Inc()
	case types.EventProviderResponded:
		provider, _ := e.Data["provider"].(string)
		ms, _ := e.Data["elapsed_ms"].(int64)
		c.ProviderCall(provider, time.Duration(ms)*time.Millisecond)
	case types.EventMessageAppended:
		class := "provider"
		if sp, _ := e.Data["speaker"].(string); sp == types.SpeakerHuman {
			class = "human"
		}
		c.messagesAppended.WithLabelValues(class).Inc()
	case types.EventProviderError:
		provider, _ := e.Data["provider"].(string)
		c.providerErrors.WithLabelValues(provider).Inc()
	case types.EventPersistenceFailure:
		c.persistenceFailures.Inc()
	case types.EventModerationPause:
		c.moderationPauses.Inc()
	case types.EventAutoRoundScheduled:
		c.autoRounds.Inc()
	case types.EventAutoRoundsExhausted:
		c.autoRoundsExhausted.Inc()
	}
}
