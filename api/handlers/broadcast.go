package handlers

import (
	"sync"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/types"
)

// subscriberBuffer bounds the per-subscriber event queue. A subscriber
// that falls this far behind starts losing events rather than blocking
// the engine.
const subscriberBuffer = 64

// Broadcaster fans engine events out to per-session websocket
// subscribers. It implements types.EventSink.
type Broadcaster struct {
	subscribers map[string]map[chan types.Event]struct{} // session id -> subscriber channels
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[chan types.Event]struct{}),
		logger:      logger.With(zap.String("component", "broadcaster")),
	}
}

// Emit implements types.EventSink. Delivery is non-blocking; full
// subscriber queues drop the event.
func (b *Broadcaster) Emit(e types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers[e.SessionID] {
		select {
		case ch <- e:
		default:
			b.logger.Debug("subscriber queue full, event dropped",
				zap.String("session_id", e.SessionID),
				zap.String("event", string(e.Type)),
			)
		}
	}
}

// Subscribe registers a listener for one session's events. The returned
// cancel function must be called when the listener goes away.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan types.Event, func()) {
	ch := make(chan types.Event, subscriberBuffer)
	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[chan types.Event]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[sessionID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subscribers, sessionID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
