package types

import (
	"time"

	"github.com/google/uuid"
)

// SpeakerHuman is the reserved speaker label for the human moderator.
// Provider messages carry the provider identifier as their speaker.
const SpeakerHuman = "human"

// Message represents one entry in a conversation's transcript.
// Messages are immutable once created and appended only; the slice order
// in Session history is the conversation's total order.
type Message struct {
	ID        string           `json:"id"`
	Speaker   string           `json:"speaker"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Analysis  *MessageAnalysis `json:"analysis,omitempty"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(speaker, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Speaker:   speaker,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewHumanMessage creates a message attributed to the human moderator.
func NewHumanMessage(content string) Message {
	return NewMessage(SpeakerHuman, content)
}

// IsHuman reports whether the message was posted by the human moderator.
func (m Message) IsHuman() bool {
	return m.Speaker == SpeakerHuman
}

// WithAnalysis attaches the ingestion-time analysis bundle.
func (m Message) WithAnalysis(a *MessageAnalysis) Message {
	m.Analysis = a
	return m
}
