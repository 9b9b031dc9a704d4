// Package scheduler implements the turn-orchestration state machine:
// speaker selection with no-immediate-repeat fairness, random first-batch
// ordering, moderation-pause detection, and bounded auto-continuation.
//
// The scheduler is pure decision logic. It never sleeps and never invokes
// providers itself; the session runtime executes batches, honors pacing
// delays, and checks session liveness before acting on a continuation
// decision. Randomness is injected so selection tests are deterministic.
package scheduler
