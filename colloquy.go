// Package colloquy provides a top-level convenience entry point for
// embedding the dialogue engine without running the server.
//
// Usage:
//
//	import "github.com/colloquyhq/colloquy"
//
//	registry := colloquy.NewRegistry()
//	registry.Register(openai.New(openai.Config{Name: "mill", Model: "gpt-4o"}, nil))
//
//	arena := colloquy.NewArena(registry, colloquy.ArenaOptions{})
//	sess, err := arena.Create("the nature of consciousness", colloquy.DefaultSessionConfig())
//
// This is a thin wrapper around [session.NewManager]; both produce
// identical results. Use this package when you prefer the shorter
// import path.
package colloquy

import (
	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/session"
	"github.com/colloquyhq/colloquy/types"
)

// Arena manages the live conversation sessions.
type Arena = session.Manager

// ArenaOptions configures the arena created by [NewArena].
type ArenaOptions = session.ManagerOptions

// Conversation is one moderated dialogue session.
type Conversation = session.Session

// NewArena creates a conversation arena. Zero options give an in-memory
// store, no event sink, and the default pacing delays.
func NewArena(registry *providers.Registry, opts ArenaOptions) *Arena {
	return session.NewManager(registry, opts)
}

// NewRegistry creates an empty response-provider registry.
func NewRegistry() *providers.Registry {
	return providers.NewRegistry()
}

// DefaultSessionConfig returns the baseline per-session configuration.
func DefaultSessionConfig() types.SessionConfig {
	return types.DefaultSessionConfig()
}
