package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colloquyhq/colloquy/types"
)

func providerMsg(speaker, content string) types.Message {
	return types.NewMessage(speaker, content)
}

func TestConsensusScorerNotEnoughMessages(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		types.NewHumanMessage("let's begin"),
		providerMsg("a", "I agree entirely"),
		providerMsg("b", "exactly right"),
	}
	sample := s.Score(history)
	assert.Equal(t, 0, sample.Level)
	assert.Equal(t, NotEnoughMessagesLabel, sample.SummaryLabel)
	assert.Equal(t, 0, sample.SampleSize)
}

func TestConsensusScorerFullAgreement(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		types.NewHumanMessage("what is justice?"),
		providerMsg("a", "I agree with the framing"),
		providerMsg("b", "exactly, well said"),
		providerMsg("c", "indeed, a valid point"),
	}
	sample := s.Score(history)
	assert.Equal(t, 100, sample.Level)
	assert.Equal(t, "strong consensus", sample.SummaryLabel)
	assert.Equal(t, 3, sample.SampleSize)
	assert.Equal(t, 0, sample.DisagreementHits)
}

func TestConsensusScorerDisagreement(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		types.NewHumanMessage("is free will real?"),
		providerMsg("a", "that argument is flawed"),
		providerMsg("b", "I must push back on this"),
		providerMsg("c", "not convinced by the premise"),
	}
	sample := s.Score(history)
	assert.Equal(t, 0, sample.Level)
	assert.Equal(t, "significant differences", sample.SummaryLabel)
	assert.Equal(t, 3, sample.DisagreementHits)
	assert.Equal(t, 0, sample.AgreementHits)
}

func TestConsensusScorerNeutral(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		types.NewHumanMessage("opening question"),
		providerMsg("a", "the sky holds many colors"),
		providerMsg("b", "rivers flow to the sea"),
		providerMsg("c", "mountains are older than nations"),
	}
	sample := s.Score(history)
	assert.Equal(t, 50, sample.Level)
	assert.Equal(t, "mixed perspectives", sample.SummaryLabel)
}

func TestConsensusScorerDoubleCounting(t *testing.T) {
	s := NewConsensusScorer()
	// "disagree" contains "agree", so one occurrence lands on both
	// sides of the ledger.
	history := []types.Message{
		types.NewHumanMessage("opening"),
		providerMsg("a", "I disagree with that"),
		providerMsg("b", "plain statement"),
		providerMsg("c", "another plain statement"),
	}
	sample := s.Score(history)
	assert.Equal(t, 1, sample.AgreementHits)
	assert.Equal(t, 1, sample.DisagreementHits)
	assert.Equal(t, 50, sample.Level)
}

func TestConsensusScorerWindow(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		providerMsg("a", "I strongly oppose everything here"),
		providerMsg("b", "this is flawed and I dispute it"),
	}
	// Six newer agreeable messages push the hostile ones out of the
	// window entirely.
	for i := 0; i < 3; i++ {
		history = append(history,
			providerMsg("a", "exactly so"),
			providerMsg("b", "well said, indeed"),
		)
	}
	sample := s.Score(history)
	assert.Equal(t, 0, sample.DisagreementHits)
	assert.Equal(t, 100, sample.Level)
}

func TestConsensusScorerIgnoresHumanMessages(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		types.NewHumanMessage("I disagree with all of you"),
		types.NewHumanMessage("still disagreeing"),
		providerMsg("a", "I agree"),
		providerMsg("b", "exactly"),
	}
	sample := s.Score(history)
	assert.Equal(t, 2, sample.SampleSize)
	assert.Equal(t, 0, sample.DisagreementHits)
	assert.Equal(t, 100, sample.Level)
}

func TestConsensusScorerHistoryCap(t *testing.T) {
	s := NewConsensusScorer()
	history := []types.Message{
		types.NewHumanMessage("h"),
		providerMsg("a", "m1"),
		providerMsg("b", "m2"),
		providerMsg("c", "m3"),
	}
	for i := 0; i < 25; i++ {
		s.Score(history)
	}
	samples := s.History()
	require.Len(t, samples, 20, "retained history is bounded")
}

func TestConsensusLabels(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{100, "strong consensus"},
		{80, "strong consensus"},
		{79, "growing agreement"},
		{60, "growing agreement"},
		{59, "mixed perspectives"},
		{40, "mixed perspectives"},
		{39, "some disagreement"},
		{20, "some disagreement"},
		{19, "significant differences"},
		{0, "significant differences"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, consensusLabel(tt.level), "level %d", tt.level)
	}
}
