package types

import "time"

// SessionStatus is the lifecycle state of a conversation session.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
	StatusResumed SessionStatus = "resumed"
)

// Live reports whether the session accepts new messages and batches.
// A resumed session behaves as active.
func (s SessionStatus) Live() bool {
	return s == StatusActive || s == StatusResumed
}

// SessionConfig holds the moderator-adjustable knobs of a conversation.
// Replaceable at any time; a batch already in flight keeps the snapshot
// it started with.
type SessionConfig struct {
	MaxTokens                int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature              float64 `json:"temperature" yaml:"temperature"`
	AutoRoundsEnabled        bool    `json:"auto_rounds_enabled" yaml:"auto_rounds_enabled"`
	ModerationPauseThreshold int     `json:"moderation_pause_threshold" yaml:"moderation_pause_threshold"`
}

// DefaultSessionConfig returns the default conversation configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxTokens:                1024,
		Temperature:              0.7,
		AutoRoundsEnabled:        true,
		ModerationPauseThreshold: 4,
	}
}

// SessionConfigPatch is a partial config update; nil fields keep the
// current value.
type SessionConfigPatch struct {
	MaxTokens                *int     `json:"max_tokens,omitempty"`
	Temperature              *float64 `json:"temperature,omitempty"`
	AutoRoundsEnabled        *bool    `json:"auto_rounds_enabled,omitempty"`
	ModerationPauseThreshold *int     `json:"moderation_pause_threshold,omitempty"`
}

// Apply returns cfg with the non-nil patch fields overlaid.
func (p SessionConfigPatch) Apply(cfg SessionConfig) SessionConfig {
	if p.MaxTokens != nil {
		cfg.MaxTokens = *p.MaxTokens
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.AutoRoundsEnabled != nil {
		cfg.AutoRoundsEnabled = *p.AutoRoundsEnabled
	}
	if p.ModerationPauseThreshold != nil {
		cfg.ModerationPauseThreshold = *p.ModerationPauseThreshold
	}
	return cfg
}

// SessionSnapshot is the persisted form of a conversation session.
// Analytics state is not persisted; it is reconstructed by replaying
// History through the ingestion path.
type SessionSnapshot struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Participants []string      `json:"participants"`
	History      []Message     `json:"history"`
	Status       SessionStatus `json:"status"`
	Config       SessionConfig `json:"config"`
	CreatedAt    time.Time     `json:"created_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	ResumedAt    *time.Time    `json:"resumed_at,omitempty"`
}

// SessionSummary is a lightweight descriptor for listing stored sessions.
type SessionSummary struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Status       SessionStatus `json:"status"`
	MessageCount int           `json:"message_count"`
	CreatedAt    time.Time     `json:"created_at"`
}
