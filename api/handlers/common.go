// Package handlers implements the HTTP and WebSocket transport over the
// conversation engine. The transport relays commands in and events out;
// it interprets neither.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/types"
)

// Response is the unified API envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo carries a structured error to the client.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError maps an engine error onto the envelope and an HTTP status.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var engineErr *types.Error
	if !errors.As(err, &engineErr) {
		engineErr = types.NewError(types.ErrInternalError, err.Error())
	}
	status := engineErr.HTTPStatus
	if status == 0 {
		status = statusForCode(engineErr.Code)
	}
	if logger != nil {
		logger.Warn("api error",
			zap.String("code", string(engineErr.Code)),
			zap.String("message", engineErr.Message),
			zap.Int("status", status),
		)
	}
	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(engineErr.Code),
			Message:   engineErr.Message,
			Retryable: engineErr.Retryable,
		},
		Timestamp: time.Now(),
	})
}

func statusForCode(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidArgument:
		return http.StatusBadRequest
	case types.ErrSessionNotFound:
		return http.StatusNotFound
	case types.ErrInvalidState, types.ErrBatchInFlight:
		return http.StatusConflict
	case types.ErrNoEligibleProviders:
		return http.StatusUnprocessableEntity
	case types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrProviderFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes the request body into dst, writing a 400 on
// failure. The returned error is only a signal to stop handling.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, types.NewError(types.ErrInvalidArgument, "invalid JSON body").WithCause(err), logger)
		return err
	}
	return nil
}
