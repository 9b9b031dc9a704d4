package analytics

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/colloquyhq/colloquy/types"
)

// DefaultTopIdeasLimit bounds TopIdeas output.
const DefaultTopIdeasLimit = 5

// registryKeyPrefixLen is how much of the normalized text participates
// in the registry key.
const registryKeyPrefixLen = 50

// maxContextSnippets caps per-idea snippets; OccurrenceCount keeps
// growing past the cap.
const maxContextSnippets = 5

// snippetLen truncates the source message text stored as context.
const snippetLen = 200

// IdeaEntry is one accumulated registry entry. Entries are never removed
// within a conversation's lifetime, and OccurrenceCount only increases.
type IdeaEntry struct {
	CanonicalText      string         `json:"canonical_text"`
	Type               types.IdeaType `json:"type"`
	OccurrenceCount    int            `json:"occurrence_count"`
	CumulativeStrength float64        `json:"cumulative_strength"`
	ContextSnippets    []string       `json:"context_snippets"`
	FirstSeenAt        time.Time      `json:"first_seen_at"`
	RunningSummary     string         `json:"running_summary,omitempty"`
}

// MeanStrength is the average strength across occurrences.
func (e *IdeaEntry) MeanStrength() float64 {
	if e.OccurrenceCount == 0 {
		return 0
	}
	return e.CumulativeStrength / float64(e.OccurrenceCount)
}

// summaryPhrases maps idea types to the descriptive phrase used when
// regenerating the running summary.
var summaryPhrases = map[types.IdeaType]string{
	types.IdeaConcept:           "This concept has been explored",
	types.IdeaArgument:          "This argument has been raised",
	types.IdeaDefinition:        "This definition has been revisited",
	types.IdeaThoughtExperiment: "This thought experiment has been posed",
	types.IdeaInsight:           "This insight has surfaced",
	types.IdeaFramework:         "This framework has been referenced",
	types.IdeaParadox:           "This paradox has resurfaced",
	types.IdeaConnection:        "This connection has been drawn",
	types.IdeaQuestion:          "This question has come up",
	types.IdeaKeyConcept:        "This key concept has appeared",
}

const genericSummaryPhrase = "This idea has recurred"

// IdeaRegistry accumulates extracted ideas across a whole conversation,
// merging candidates that share a registry key and tracking recurrence.
type IdeaRegistry struct {
	entries map[string]*IdeaEntry
	order   []string // insertion order, for deterministic tie-breaks
	now     func() time.Time
}

// NewIdeaRegistry creates an empty registry.
func NewIdeaRegistry() *IdeaRegistry {
	return &IdeaRegistry{
		entries: make(map[string]*IdeaEntry),
		now:     time.Now,
	}
}

func registryKey(c types.IdeaCandidate) string {
	norm := normalizeIdeaText(c.Text)
	if len(norm) > registryKeyPrefixLen {
		norm = norm[:registryKeyPrefixLen]
	}
	return string(c.Type) + ":" + norm
}

// Absorb merges one message's extracted candidates into the registry.
// Recurring keys increment OccurrenceCount, accumulate strength, append
// a bounded context snippet, and regenerate the running summary.
func (r *IdeaRegistry) Absorb(ideas []types.IdeaCandidate, messageText string) {
	snippet := truncateText(messageText, snippetLen)
	for _, c := range ideas {
		key := registryKey(c)
		entry, ok := r.entries[key]
		if !ok {
			r.entries[key] = &IdeaEntry{
				CanonicalText:      c.Text,
				Type:               c.Type,
				OccurrenceCount:    1,
				CumulativeStrength: c.Strength,
				ContextSnippets:    []string{snippet},
				FirstSeenAt:        r.now(),
			}
			r.order = append(r.order, key)
			continue
		}
		entry.OccurrenceCount++
		entry.CumulativeStrength += c.Strength
		if len(entry.ContextSnippets) < maxContextSnippets {
			entry.ContextSnippets = append(entry.ContextSnippets, snippet)
		}
		entry.RunningSummary = summarize(entry)
	}
}

// summarize rebuilds the running summary; only called once an idea has
// recurred (OccurrenceCount > 1).
func summarize(e *IdeaEntry) string {
	phrase, ok := summaryPhrases[e.Type]
	if !ok {
		phrase = genericSummaryPhrase
	}
	return fmt.Sprintf("%s %d times in the discussion: %q", phrase, e.OccurrenceCount, e.CanonicalText)
}

// TopIdeas returns up to limit entries sorted by occurrence count, then
// mean strength, with insertion order as the final tie-break. Entries
// are deep copies; later absorptions never mutate a returned slice.
func (r *IdeaRegistry) TopIdeas(limit int) []*IdeaEntry {
	if limit <= 0 {
		limit = DefaultTopIdeasLimit
	}
	out := make([]*IdeaEntry, 0, len(r.order))
	for _, key := range r.order {
		cp := *r.entries[key]
		cp.ContextSnippets = append([]string(nil), cp.ContextSnippets...)
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurrenceCount != out[j].OccurrenceCount {
			return out[i].OccurrenceCount > out[j].OccurrenceCount
		}
		return out[i].MeanStrength() > out[j].MeanStrength()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of distinct tracked ideas.
func (r *IdeaRegistry) Len() int {
	return len(r.entries)
}

// truncateText shortens s to at most n bytes without splitting a
// multi-byte rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
