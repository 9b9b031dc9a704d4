package analytics

import (
	"math"
	"strings"
	"time"

	"github.com/colloquyhq/colloquy/types"
)

// consensusWindow is the sliding window of recent messages scored.
const consensusWindow = 6

// consensusMinHistory is the floor below which scoring returns the
// sentinel sample instead of a real score.
const consensusMinHistory = 4

// consensusSampleCap bounds the retained sample history for graphing.
// Scoring itself always re-derives from the live message window, never
// from this capped list.
const consensusSampleCap = 20

// NotEnoughMessagesLabel is the sentinel summary label used while the
// conversation is still too short to score.
const NotEnoughMessagesLabel = "not enough messages"

// ConsensusSample is one scored agreement reading.
type ConsensusSample struct {
	Level            int       `json:"level"` // 0-100
	SummaryLabel     string    `json:"summary_label"`
	Timestamp        time.Time `json:"timestamp"`
	AgreementHits    int       `json:"agreement_hits"`
	DisagreementHits int       `json:"disagreement_hits"`
	SampleSize       int       `json:"sample_size"` // non-human messages scored
}

// agreementIndicators and disagreementIndicators are matched as plain
// substrings, not word boundaries. A message containing phrases from
// both lists contributes hits to both sides; that double-counting is the
// documented contract of the heuristic.
var agreementIndicators = []string{
	"agree", "exactly", "precisely", "indeed", "absolutely",
	"good point", "well said", "build on", "similarly", "likewise",
	"that's right", "valid point",
}

var disagreementIndicators = []string{
	"disagree", "however", "on the contrary", "i don't think",
	"oppose", "push back", "challenge", "dispute", "not convinced",
	"flawed",
}

// ConsensusScorer computes a 0-100 agreement score over the most recent
// non-human turns and retains a bounded sample history for graphing.
type ConsensusScorer struct {
	samples []ConsensusSample
	now     func() time.Time
}

// NewConsensusScorer creates a scorer with an empty sample history.
func NewConsensusScorer() *ConsensusScorer {
	return &ConsensusScorer{now: time.Now}
}

// Score derives a fresh sample from the last consensusWindow messages of
// history, appends it to the retained sample list, and returns it.
// Histories shorter than consensusMinHistory yield the level-0 sentinel.
func (s *ConsensusScorer) Score(history []types.Message) ConsensusSample {
	sample := s.derive(history)
	s.samples = append(s.samples, sample)
	if len(s.samples) > consensusSampleCap {
		s.samples = s.samples[len(s.samples)-consensusSampleCap:]
	}
	return sample
}

func (s *ConsensusScorer) derive(history []types.Message) ConsensusSample {
	if len(history) < consensusMinHistory {
		return ConsensusSample{
			Level:        0,
			SummaryLabel: NotEnoughMessagesLabel,
			Timestamp:    s.now(),
		}
	}

	window := history
	if len(window) > consensusWindow {
		window = window[len(window)-consensusWindow:]
	}

	var agreeHits, disagreeHits, nonHuman int
	for _, msg := range window {
		if msg.IsHuman() {
			continue
		}
		nonHuman++
		content := strings.ToLower(msg.Content)
		for _, phrase := range agreementIndicators {
			if strings.Contains(content, phrase) {
				agreeHits++
			}
		}
		for _, phrase := range disagreementIndicators {
			if strings.Contains(content, phrase) {
				disagreeHits++
			}
		}
	}

	level := 50
	if nonHuman > 0 {
		raw := float64(agreeHits-disagreeHits)/float64(nonHuman)*50 + 50
		level = int(math.Round(raw))
	}
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	return ConsensusSample{
		Level:            level,
		SummaryLabel:     consensusLabel(level),
		Timestamp:        s.now(),
		AgreementHits:    agreeHits,
		DisagreementHits: disagreeHits,
		SampleSize:       nonHuman,
	}
}

// consensusLabel maps a level to its qualitative bucket.
func consensusLabel(level int) string {
	switch {
	case level >= 80:
		return "strong consensus"
	case level >= 60:
		return "growing agreement"
	case level >= 40:
		return "mixed perspectives"
	case level >= 20:
		return "some disagreement"
	default:
		return "significant differences"
	}
}

// History returns the retained samples, oldest first.
func (s *ConsensusScorer) History() []ConsensusSample {
	out := make([]ConsensusSample, len(s.samples))
	copy(out, s.samples)
	return out
}
