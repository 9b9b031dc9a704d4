// Package providers defines the ResponseProvider capability consumed by
// the turn scheduler, a registry of configured providers, and the shared
// prompt construction helper. Concrete HTTP-backed providers live in
// subpackages.
package providers

import (
	"context"
	"sync"

	"github.com/colloquyhq/colloquy/types"
)

// Context carries the conversation state handed to a provider on each
// invocation. History is the transcript snapshot at invocation time,
// which inside a batch includes the messages of earlier speakers in the
// same batch.
type Context struct {
	Topic        string
	Participants []string
	History      []types.Message
	MaxTokens    int
	Temperature  float64
}

// ResponseProvider is one external response-generating agent. A call may
// fail; failures are caught per provider and never abort the rest of a
// batch.
type ResponseProvider interface {
	// Identifier is the stable name used as speaker label and for
	// repeat avoidance.
	Identifier() string

	// Respond returns one complete response message for the prompt.
	Respond(ctx context.Context, prompt string, pctx Context) (string, error)
}

// Registry holds the registered providers in registration order.
type Registry struct {
	byID  map[string]ResponseProvider
	order []string
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]ResponseProvider)}
}

// Register adds a provider. Re-registering an identifier replaces the
// provider but keeps its original position.
func (r *Registry) Register(p ResponseProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.Identifier()
	if _, ok := r.byID[id]; !ok {
		r.order = append(r.order, id)
	}
	r.byID[id] = p
}

// Get returns the provider for id.
func (r *Registry) Get(id string) (ResponseProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Identifiers returns all registered provider IDs in registration order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
