package analytics

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/types"
)

// snapshotTopIdeas and snapshotWordCloud size the export view.
const (
	snapshotTopIdeas  = 10
	snapshotWordCloud = 30
)

// Totals are the running aggregate counters of a conversation.
type Totals struct {
	Messages     int `json:"messages"`
	TrackedIdeas int `json:"tracked_ideas"`
}

// Snapshot is the pull-based export view of a conversation's analytics.
// Safe to request at any time; an empty conversation yields empty
// structures, never an error.
type Snapshot struct {
	TopIdeas              []*IdeaEntry            `json:"top_ideas"`
	WordCloud             []WordCount             `json:"word_cloud"`
	ConsensusHistory      []ConsensusSample       `json:"consensus_history"`
	SentimentDistribution map[types.Sentiment]int `json:"sentiment_distribution"`
	Totals                Totals                  `json:"totals"`
}

// ConversationAnalytics is the single per-conversation aggregation
// facade. Exactly one instance is owned by each live session; state is
// reconstructible by replaying the transcript through RecordMessage.
type ConversationAnalytics struct {
	extractor *IdeaExtractor
	registry  *IdeaRegistry
	words     *WordFrequencyTracker
	consensus *ConsensusScorer

	sentiments map[types.Sentiment]int
	messages   int

	logger *zap.Logger
	mu     sync.Mutex
}

// New creates an empty analytics instance.
func New(logger *zap.Logger) *ConversationAnalytics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationAnalytics{
		extractor:  NewIdeaExtractor(),
		registry:   NewIdeaRegistry(),
		words:      NewWordFrequencyTracker(),
		consensus:  NewConsensusScorer(),
		sentiments: make(map[types.Sentiment]int),
		logger:     logger.With(zap.String("component", "analytics")),
	}
}

// RecordMessage ingests one message: extracts ideas, absorbs them into
// the registry, updates word frequencies, classifies sentiment, and
// detects insight tags. Returns the per-message analysis bundle.
// Blank content is a precondition violation and mutates nothing.
func (a *ConversationAnalytics) RecordMessage(speaker, text string) (*types.MessageAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "message content must be non-empty text")
	}
	if speaker == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "message speaker must be set")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ideas := a.extractor.Extract(text)
	a.registry.Absorb(ideas, text)
	a.words.Record(text)

	sentiment := classifySentiment(text)
	a.sentiments[sentiment]++
	a.messages++

	analysis := &types.MessageAnalysis{
		Ideas:     ideas,
		Insights:  detectInsights(text),
		Sentiment: sentiment,
	}

	a.logger.Debug("message recorded",
		zap.String("speaker", speaker),
		zap.Int("ideas", len(ideas)),
		zap.String("sentiment", string(sentiment)),
	)
	return analysis, nil
}

// ConsensusSnapshot scores the supplied history and appends the sample
// to the retained consensus history.
func (a *ConversationAnalytics) ConsensusSnapshot(history []types.Message) ConsensusSample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.consensus.Score(history)
}

// Export returns the current analytics snapshot. Pure read, no side
// effects.
func (a *ConversationAnalytics) Export() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	dist := make(map[types.Sentiment]int, len(a.sentiments))
	for k, v := range a.sentiments {
		dist[k] = v
	}
	return Snapshot{
		TopIdeas:              a.registry.TopIdeas(snapshotTopIdeas),
		WordCloud:             a.words.Snapshot(snapshotWordCloud),
		ConsensusHistory:      a.consensus.History(),
		SentimentDistribution: dist,
		Totals: Totals{
			Messages:     a.messages,
			TrackedIdeas: a.registry.Len(),
		},
	}
}
