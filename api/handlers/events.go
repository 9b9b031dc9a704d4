package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/session"
)

const eventWriteTimeout = 10 * time.Second

// EventsHandler relays a conversation's event stream over a websocket.
type EventsHandler struct {
	manager     *session.Manager
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewEventsHandler creates the handler.
func NewEventsHandler(manager *session.Manager, broadcaster *Broadcaster, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		manager:     manager,
		broadcaster: broadcaster,
		logger:      logger.With(zap.String("component", "events_handler")),
	}
}

// Register mounts the route on mux.
func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/conversations/{id}/events", h.handleEvents)
}

func (h *EventsHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.manager.Get(id); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := h.broadcaster.Subscribe(id)
	defer cancel()

	// Drain client frames so pings are answered and closure is noticed.
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("event stream opened", zap.String("session_id", id))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(wctx, conn, ev)
			wcancel()
			if err != nil {
				h.logger.Debug("event stream closed", zap.String("session_id", id), zap.Error(err))
				return
			}
		}
	}
}
