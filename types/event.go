package types

import "time"

// EventType names an engine event relayed to the transport layer.
// The transport's job is purely to relay these, not to interpret them.
type EventType string

const (
	EventMessageAppended     EventType = "message-appended"
	EventProviderThinking    EventType = "provider-thinking"
	EventProviderError       EventType = "provider-error"
	EventAnalyticsUpdated    EventType = "analytics-updated"
	EventModerationPause     EventType = "moderation-pause"
	EventAutoRoundScheduled  EventType = "auto-round-scheduled"
	EventAutoRoundsExhausted EventType = "auto-rounds-exhausted"
	EventRandomSelection     EventType = "random-selection-chosen"
	EventForcedRepeat        EventType = "forced-repeat"
	EventSessionStarted      EventType = "session-started"
	EventSessionEnded        EventType = "session-ended"
	EventSessionResumed      EventType = "session-resumed"
	EventBatchStarted        EventType = "batch-started"
	EventProviderResponded   EventType = "provider-responded"
	EventNoEligibleProviders EventType = "no-eligible-providers"
	EventPersistenceFailure  EventType = "persistence-failure"
)

// Event is one engine notification bound for the transport layer.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(t EventType, sessionID string, data map[string]any) Event {
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now(), Data: data}
}

// EventSink receives engine events. Implementations must not block for
// long; slow consumers should buffer or drop.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(e Event) { f(e) }

// NopSink discards all events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(Event) {}

// Fanout returns a sink delivering each event to every sink in order.
func Fanout(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}
