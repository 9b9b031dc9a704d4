package mocks

import "sync"

// ScriptedRand is a deterministic randomness source. IntN pops values
// from a fixed script, falling back to 0 when the script runs out, and
// Shuffle leaves order untouched so test expectations stay readable.
type ScriptedRand struct {
	mu     sync.Mutex
	script []int
	pos    int
}

// NewScriptedRand creates a source returning the given IntN values in
// order.
func NewScriptedRand(script ...int) *ScriptedRand {
	return &ScriptedRand{script: script}
}

// IntN returns the next scripted value modulo n.
func (r *ScriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.script) {
		return 0
	}
	v := r.script[r.pos] % n
	r.pos++
	return v
}

// Shuffle is a no-op, preserving input order.
func (r *ScriptedRand) Shuffle(n int, swap func(i, j int)) {}

// ReversingRand shuffles by reversing, so reordering is observable but
// deterministic.
type ReversingRand struct{}

// IntN always returns 0.
func (ReversingRand) IntN(n int) int { return 0 }

// Shuffle reverses the slice.
func (ReversingRand) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}
