package scheduler

import "math/rand/v2"

// RandSource supplies the randomness used for speaker ordering.
// Production uses the system source; tests inject a fixed sequence.
type RandSource interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type systemRand struct{}

func (systemRand) IntN(n int) int                     { return rand.IntN(n) }
func (systemRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// SystemRand returns the production randomness source.
func SystemRand() RandSource { return systemRand{} }
