package analytics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/colloquyhq/colloquy/types"
)

// MaxIdeasPerMessage bounds Extract output.
const MaxIdeasPerMessage = 10

// maxKeyConcepts bounds the surface-heuristic key concept candidates.
const maxKeyConcepts = 5

// keyConceptStrength is the fixed strength for key concept candidates.
const keyConceptStrength = 0.7

// jaccardDuplicateThreshold marks two candidates as near-duplicates.
const jaccardDuplicateThreshold = 0.8

// patternRule is one extraction category: a trigger pattern whose first
// capture group is the candidate span, bounded in character length to
// reject trivial or runaway captures. The rule set is data, not control
// flow, so categories can be tested in isolation.
type patternRule struct {
	ideaType types.IdeaType
	re       *regexp.Regexp
	minLen   int
	maxLen   int
}

var patternRules = []patternRule{
	{types.IdeaConcept, regexp.MustCompile(`(?i)\bthe (?:concept|idea|notion) of ([^.!?,;\n]+)`), 10, 80},
	{types.IdeaArgument, regexp.MustCompile(`(?i)\b(?:i (?:would )?argue|i contend|my argument is|it follows) that ([^.!?\n]+)`), 15, 120},
	{types.IdeaDefinition, regexp.MustCompile(`(?i)\b(?:is defined as|is best understood as|refers to) ([^.!?\n]+)`), 10, 100},
	{types.IdeaThoughtExperiment, regexp.MustCompile(`(?i)\b(?:imagine|suppose|consider a world where|what if) ([^.!?\n]+)`), 15, 120},
	{types.IdeaInsight, regexp.MustCompile(`(?i)\b(?:i realize|this reveals|this suggests|the key insight is)(?: that)? ([^.!?\n]+)`), 15, 120},
	{types.IdeaFramework, regexp.MustCompile(`(?i)\b(?:framework|model|theory|system) of ([^.!?,;\n]+)`), 10, 80},
	{types.IdeaParadox, regexp.MustCompile(`(?i)\b(?:paradox|contradiction|tension) (?:of|between|in) ([^.!?,;\n]+)`), 10, 80},
	{types.IdeaConnection, regexp.MustCompile(`(?i)\b(?:connects to|relates to|ties into|links with) ([^.!?\n]+)`), 10, 100},
	{types.IdeaQuestion, regexp.MustCompile(`(?:^|[.!?]\s+)([^.!?\n]+)\?`), 10, 120},
}

// keyConceptRules are three independent surface heuristics: capitalized
// multi-word spans, abstraction suffixes, and compound prefixes.
var keyConceptRules = []*regexp.Regexp{
	regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z][a-z]+)+)\b`),
	regexp.MustCompile(`(?i)\b(\w{3,}(?:ism|ity|tion|ness|ment|ology))\b`),
	regexp.MustCompile(`(?i)\b((?:meta|proto|quasi|semi|pseudo|neo)-?\w{3,})\b`),
}

const (
	keyConceptMinLen = 5
	keyConceptMaxLen = 50
)

// loadedTerms each add a fixed strength bonus when present in a candidate.
var loadedTerms = []string{
	"consciousness", "existence", "reality", "truth", "knowledge",
	"morality", "freedom", "justice", "meaning", "essence",
	"causality", "identity", "infinity", "perception",
}

// shortConnectives are frequent glue words excluded from the per-word
// strength bonus even though they exceed the length cutoff.
var shortConnectives = map[string]struct{}{
	"that": {}, "this": {}, "with": {}, "from": {}, "have": {},
	"been": {}, "they": {}, "their": {}, "would": {}, "could": {},
	"should": {}, "about": {}, "which": {}, "there": {}, "where": {},
	"when": {}, "what": {}, "then": {}, "than": {}, "these": {},
	"those": {}, "into": {}, "because": {},
}

var (
	punctStrip    = regexp.MustCompile(`[^\w\s]`)
	spaceCollapse = regexp.MustCompile(`\s+`)
)

// normalizeIdeaText lowercases, strips punctuation, and collapses
// whitespace. Used for dedup comparison and registry keying.
func normalizeIdeaText(s string) string {
	s = strings.ToLower(s)
	s = punctStrip.ReplaceAllString(s, "")
	s = spaceCollapse.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IdeaExtractor produces a ranked, deduplicated list of idea candidates
// from one message's text.
type IdeaExtractor struct{}

// NewIdeaExtractor creates an extractor.
func NewIdeaExtractor() *IdeaExtractor {
	return &IdeaExtractor{}
}

// Extract applies the pattern rule table and the key concept heuristics,
// scores each candidate, drops near-duplicates (first seen wins), and
// returns at most MaxIdeasPerMessage candidates ordered by descending
// strength. Empty or very short text yields an empty result, not an error.
func (e *IdeaExtractor) Extract(text string) []types.IdeaCandidate {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var candidates []types.IdeaCandidate
	for _, rule := range patternRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			span := strings.TrimSpace(m[1])
			if len(span) < rule.minLen || len(span) > rule.maxLen {
				continue
			}
			candidates = append(candidates, types.IdeaCandidate{
				Text:     span,
				Type:     rule.ideaType,
				Strength: scoreStrength(span),
			})
		}
	}

	candidates = append(candidates, extractKeyConcepts(text)...)
	candidates = dedupeCandidates(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Strength > candidates[j].Strength
	})
	if len(candidates) > MaxIdeasPerMessage {
		candidates = candidates[:MaxIdeasPerMessage]
	}
	return candidates
}

// extractKeyConcepts runs the surface heuristics even when no pattern
// category matched, collecting up to maxKeyConcepts length-bounded spans.
func extractKeyConcepts(text string) []types.IdeaCandidate {
	seen := make(map[string]struct{})
	var out []types.IdeaCandidate
	for _, re := range keyConceptRules {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			span := strings.TrimSpace(m[1])
			if len(span) < keyConceptMinLen || len(span) > keyConceptMaxLen {
				continue
			}
			norm := normalizeIdeaText(span)
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, types.IdeaCandidate{
				Text:     span,
				Type:     types.IdeaKeyConcept,
				Strength: keyConceptStrength,
			})
			if len(out) == maxKeyConcepts {
				return out
			}
		}
	}
	return out
}

// scoreStrength computes the heuristic strength of a captured span:
// a length base, a bonus per philosophically loaded term, and a bonus
// per non-trivial word. The running total may exceed 1.0 before the
// final clamp; that is the contract, not a bug.
func scoreStrength(span string) float64 {
	words := strings.Fields(strings.ToLower(span))
	strength := float64(len(words)) / 10
	if strength > 1 {
		strength = 1
	}
	for _, w := range words {
		for _, term := range loadedTerms {
			if strings.Contains(w, term) {
				strength += 0.2
				break
			}
		}
	}
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		if _, conn := shortConnectives[w]; conn {
			continue
		}
		strength += 0.1
	}
	if strength > 1 {
		strength = 1
	}
	if strength < 0 {
		strength = 0
	}
	return strength
}

// dedupeCandidates drops candidates whose normalized word sets are more
// than jaccardDuplicateThreshold similar to an earlier candidate.
// Pairwise over the handful of candidates per message, so O(n^2) is fine.
func dedupeCandidates(candidates []types.IdeaCandidate) []types.IdeaCandidate {
	kept := make([]types.IdeaCandidate, 0, len(candidates))
	keptSets := make([]map[string]struct{}, 0, len(candidates))
	for _, c := range candidates {
		set := wordSet(normalizeIdeaText(c.Text))
		dup := false
		for _, prev := range keptSets {
			if jaccard(set, prev) > jaccardDuplicateThreshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, c)
		keptSets = append(keptSets, set)
	}
	return kept
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
