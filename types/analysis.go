package types

// IdeaType classifies an extracted idea candidate.
type IdeaType string

const (
	IdeaConcept           IdeaType = "concept"
	IdeaArgument          IdeaType = "argument"
	IdeaDefinition        IdeaType = "definition"
	IdeaThoughtExperiment IdeaType = "thought_experiment"
	IdeaInsight           IdeaType = "insight"
	IdeaFramework         IdeaType = "framework"
	IdeaParadox           IdeaType = "paradox"
	IdeaConnection        IdeaType = "connection"
	IdeaQuestion          IdeaType = "question"
	IdeaKeyConcept        IdeaType = "key_concept"
)

// IdeaCandidate is one ranked extraction result from a single message.
// Strength is always within [0, 1] after clamping.
type IdeaCandidate struct {
	Text     string   `json:"text"`
	Type     IdeaType `json:"type"`
	Strength float64  `json:"strength"`
}

// Sentiment is the per-message sentiment classification.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// InsightKind tags a rhetorical move detected in a message.
type InsightKind string

const (
	InsightConclusion   InsightKind = "conclusion"
	InsightContrast     InsightKind = "contrast"
	InsightSpeculation  InsightKind = "speculation"
	InsightEvidence     InsightKind = "evidence"
	InsightInquiry      InsightKind = "inquiry"
	InsightAgreement    InsightKind = "agreement"
	InsightDisagreement InsightKind = "disagreement"
	InsightDevelopment  InsightKind = "development"
)

// Insight is one detected insight tag with a bounded excerpt of the
// triggering message.
type Insight struct {
	Kind    InsightKind `json:"kind"`
	Excerpt string      `json:"excerpt"`
}

// MessageAnalysis is the per-message derived bundle, computed once at
// ingestion time and cached on the message.
type MessageAnalysis struct {
	Ideas     []IdeaCandidate `json:"ideas,omitempty"`
	Insights  []Insight       `json:"insights,omitempty"`
	Sentiment Sentiment       `json:"sentiment"`
}
