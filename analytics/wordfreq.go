package analytics

import (
	"regexp"
	"sort"
	"strings"
)

// SizeTier is the discrete word-cloud size bucket for a word count.
type SizeTier string

const (
	TierXL SizeTier = "xl"
	TierLG SizeTier = "lg"
	TierMD SizeTier = "md"
	TierSM SizeTier = "sm"
	TierXS SizeTier = "xs"
)

// WordCount is one word-cloud entry.
type WordCount struct {
	Word  string   `json:"word"`
	Count int      `json:"count"`
	Tier  SizeTier `json:"tier"`
}

// DefaultWordCloudLimit bounds Snapshot output.
const DefaultWordCloudLimit = 30

var tokenSplit = regexp.MustCompile(`\W+`)

var numericToken = regexp.MustCompile(`^\d+$`)

// stopWords excludes articles, pronouns, common verbs, adverbs,
// prepositions and similar glue words from the word cloud.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and for are but not you all can had her was one our out day get
		has him his how man new now old see two way who boy did its let put
		say she too use that with have this will your from they been good
		much some time very when come here just like long make many over
		such take than them well were what about after again before being
		below between both down during each few further into more most
		other only own same then there these those through under until
		while would could should shall might must may does doing done
		their theirs themselves himself hers herself itself ours ourselves
		yours yourself yourselves myself whom which where why because
		against once any nor off above also ever even still since upon
		onto among within without toward towards across behind beyond
		really quite rather maybe perhaps indeed thing things something
		anything nothing everything someone anyone everyone went goes
		going gone came comes coming said says saying think thinks
		thinking thought know knows knowing knew want wants wanting wanted
	`) {
		stopWords[w] = struct{}{}
	}
}

// WordFrequencyTracker maintains a running count of non-trivial words
// across all messages in a conversation. Counts increase monotonically
// and are never reset except on a new conversation.
type WordFrequencyTracker struct {
	counts map[string]int
	order  []string // insertion order, used for stable tie-breaks
}

// NewWordFrequencyTracker creates an empty tracker.
func NewWordFrequencyTracker() *WordFrequencyTracker {
	return &WordFrequencyTracker{counts: make(map[string]int)}
}

// Record tokenizes text on non-word boundaries, lowercases, filters
// stop words, short tokens (length <= 3), and purely numeric tokens,
// then increments counts for the surviving tokens.
func (t *WordFrequencyTracker) Record(text string) {
	for _, tok := range tokenSplit.Split(strings.ToLower(text), -1) {
		if len(tok) <= 3 {
			continue
		}
		if numericToken.MatchString(tok) {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, seen := t.counts[tok]; !seen {
			t.order = append(t.order, tok)
		}
		t.counts[tok]++
	}
}

// Snapshot returns words with count >= 2, sorted descending by count and
// truncated to limit, each tagged with its size tier. Ties preserve
// first-seen order.
func (t *WordFrequencyTracker) Snapshot(limit int) []WordCount {
	if limit <= 0 {
		limit = DefaultWordCloudLimit
	}
	out := make([]WordCount, 0, len(t.order))
	for _, w := range t.order {
		if c := t.counts[w]; c >= 2 {
			out = append(out, WordCount{Word: w, Count: c, Tier: tierFor(c)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func tierFor(count int) SizeTier {
	switch {
	case count >= 10:
		return TierXL
	case count >= 7:
		return TierLG
	case count >= 5:
		return TierMD
	case count >= 3:
		return TierSM
	default:
		return TierXS
	}
}
