// Package api defines the wire types exchanged with the transport layer.
package api

import (
	"github.com/colloquyhq/colloquy/analytics"
	"github.com/colloquyhq/colloquy/types"
)

// StartConversationRequest opens a new conversation.
type StartConversationRequest struct {
	Topic  string                    `json:"topic"`
	Config *types.SessionConfigPatch `json:"config,omitempty"`
}

// ConversationResponse describes one conversation.
type ConversationResponse struct {
	ID           string              `json:"id"`
	Topic        string              `json:"topic"`
	Status       types.SessionStatus `json:"status"`
	Participants []string            `json:"participants"`
	Config       types.SessionConfig `json:"config"`
	MessageCount int                 `json:"message_count"`
}

// PostMessageRequest posts a human message.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// SetProvidersRequest replaces the active-provider set.
type SetProvidersRequest struct {
	Providers []string `json:"providers"`
}

// SnapshotResponse is the full conversation export: transcript plus the
// analytics snapshot.
type SnapshotResponse struct {
	Session   *types.SessionSnapshot `json:"session"`
	Analytics analytics.Snapshot     `json:"analytics"`
}
