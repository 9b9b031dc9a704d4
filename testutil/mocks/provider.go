// Mock implementations of the runtime's injectable dependencies:
// response providers, randomness sources and event sinks.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/types"
)

// ProviderCall records one Respond invocation.
type ProviderCall struct {
	Prompt  string
	Context providers.Context
}

// MockProvider is a scripted ResponseProvider. Configure it with the
// builder methods; call order and arguments are recorded for assertions.
type MockProvider struct {
	mu sync.Mutex

	name      string
	response  string
	responses []string
	err       error
	failAfter int
	delay     time.Duration

	respondFunc func(ctx context.Context, prompt string, pctx providers.Context) (string, error)

	calls     []ProviderCall
	callCount int
}

// NewMockProvider creates a provider answering with a fixed response.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:      name,
		response:  "mock response from " + name,
		failAfter: -1,
	}
}

// WithResponse sets the fixed response text.
func (m *MockProvider) WithResponse(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = text
	return m
}

// WithResponses sets a sequence of responses, one per call. The last
// entry repeats once the sequence is exhausted.
func (m *MockProvider) WithResponses(texts ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = texts
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter makes calls fail after the first n succeed.
func (m *MockProvider) WithFailAfter(n int, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// WithDelay sleeps before answering, for cancellation tests.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithRespondFunc overrides the response logic entirely.
func (m *MockProvider) WithRespondFunc(fn func(ctx context.Context, prompt string, pctx providers.Context) (string, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respondFunc = fn
	return m
}

// Identifier implements providers.ResponseProvider.
func (m *MockProvider) Identifier() string { return m.name }

// Respond implements providers.ResponseProvider.
func (m *MockProvider) Respond(ctx context.Context, prompt string, pctx providers.Context) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{Prompt: prompt, Context: pctx})
	m.callCount++
	count := m.callCount
	fn := m.respondFunc
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if fn != nil {
		return fn(ctx, prompt, pctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil && (m.failAfter < 0 || count > m.failAfter) {
		return "", m.err
	}
	if len(m.responses) > 0 {
		i := count - 1
		if i >= len(m.responses) {
			i = len(m.responses) - 1
		}
		return m.responses[i], nil
	}
	return m.response, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Respond ran.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// RecordingSink captures every emitted conversation event.
type RecordingSink struct {
	mu     sync.Mutex
	events []types.Event
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

// Emit implements types.EventSink.
func (s *RecordingSink) Emit(e types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the captured events.
func (s *RecordingSink) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfType returns the captured events with the given type.
func (s *RecordingSink) OfType(t types.EventType) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
