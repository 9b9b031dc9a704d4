package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/api"
	"github.com/colloquyhq/colloquy/session"
	"github.com/colloquyhq/colloquy/types"
)

// ConversationHandler exposes the conversation commands over HTTP.
type ConversationHandler struct {
	manager  *session.Manager
	defaults types.SessionConfig
	logger   *zap.Logger
}

// NewConversationHandler creates the handler. New conversations start
// from defaults, with the request patch applied on top.
func NewConversationHandler(manager *session.Manager, defaults types.SessionConfig, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		manager:  manager,
		defaults: defaults,
		logger:   logger.With(zap.String("component", "conversation_handler")),
	}
}

// Register mounts the routes on mux.
func (h *ConversationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/conversations", h.handleStart)
	mux.HandleFunc("GET /v1/conversations", h.handleList)
	mux.HandleFunc("GET /v1/conversations/{id}", h.handleGet)
	mux.HandleFunc("POST /v1/conversations/{id}/messages", h.handlePostMessage)
	mux.HandleFunc("POST /v1/conversations/{id}/next", h.handleNextBatch)
	mux.HandleFunc("PUT /v1/conversations/{id}/providers", h.handleSetProviders)
	mux.HandleFunc("PUT /v1/conversations/{id}/config", h.handleUpdateConfig)
	mux.HandleFunc("DELETE /v1/conversations/{id}", h.handleEnd)
	mux.HandleFunc("POST /v1/conversations/{id}/resume", h.handleResume)
	mux.HandleFunc("GET /v1/conversations/{id}/snapshot", h.handleSnapshot)
}

func conversationResponse(sess *session.Session) api.ConversationResponse {
	snap := sess.Snapshot()
	return api.ConversationResponse{
		ID:           snap.ID,
		Topic:        snap.Topic,
		Status:       snap.Status,
		Participants: snap.Participants,
		Config:       snap.Config,
		MessageCount: len(snap.History),
	}
}

func (h *ConversationHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	cfg := h.defaults
	if req.Config != nil {
		cfg = req.Config.Apply(cfg)
	}
	sess, err := h.manager.Create(req.Topic, cfg)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, conversationResponse(sess))
}

func (h *ConversationHandler) handleList(w http.ResponseWriter, r *http.Request) {
	stored, err := h.manager.ListStored(r.Context())
	if err != nil {
		// Fall back to the live arena when the store is unavailable.
		h.logger.Warn("stored listing unavailable", zap.Error(err))
		WriteSuccess(w, h.manager.ListLive())
		return
	}
	WriteSuccess(w, stored)
}

func (h *ConversationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, conversationResponse(sess))
}

func (h *ConversationHandler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	var req api.PostMessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	msg, err := sess.AppendHumanMessage(r.Context(), req.Content)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, msg)
}

// handleNextBatch triggers one scheduler batch. The batch (and any
// granted auto-rounds) runs in the background; progress is delivered on
// the event stream, so the command returns immediately.
func (h *ConversationHandler) handleNextBatch(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	// The request context dies with the response; the batch runs on
	// its own context and reports progress over the event stream.
	go func() {
		if err := sess.RunBatch(context.Background()); err != nil {
			h.logger.Warn("batch failed", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}()
	WriteSuccess(w, map[string]string{"status": "batch_started"})
}

func (h *ConversationHandler) handleSetProviders(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	var req api.SetProvidersRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := sess.SetActiveProviders(req.Providers); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"active_providers": sess.ActiveProviders()})
}

func (h *ConversationHandler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	var patch types.SessionConfigPatch
	if err := DecodeJSONBody(w, r, &patch, h.logger); err != nil {
		return
	}
	WriteSuccess(w, sess.UpdateConfig(patch))
}

func (h *ConversationHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := sess.End(r.Context()); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, conversationResponse(sess))
}

func (h *ConversationHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, conversationResponse(sess))
}

func (h *ConversationHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	snap, ana := sess.Export()
	WriteSuccess(w, api.SnapshotResponse{Session: snap, Analytics: ana})
}
