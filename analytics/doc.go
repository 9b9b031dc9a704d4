// Package analytics provides the incremental conversation analytics engine:
// word-frequency tracking for the live word cloud, rule-table idea
// extraction, a recurrence-weighted idea registry, lexical consensus
// scoring, and the per-conversation facade composing them.
//
// All heuristics are deterministic for fixed input, which makes analytics
// state reconstructible by replaying a stored transcript through
// ConversationAnalytics.RecordMessage in order.
package analytics
