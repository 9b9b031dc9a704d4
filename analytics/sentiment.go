package analytics

import (
	"regexp"
	"strings"

	"github.com/colloquyhq/colloquy/types"
)

// insightExcerptLen bounds the excerpt stored with each insight tag.
const insightExcerptLen = 200

var positiveKeywords = []string{
	"great", "excellent", "wonderful", "insightful", "brilliant",
	"fascinating", "compelling", "valuable",
}

var negativeKeywords = []string{
	"wrong", "flawed", "problematic", "mistaken", "weak", "confused",
}

// classifySentiment counts positive and negative keyword occurrences;
// net positive wins, net negative wins, ties are neutral.
func classifySentiment(text string) types.Sentiment {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range positiveKeywords {
		score += strings.Count(lower, kw)
	}
	for _, kw := range negativeKeywords {
		score -= strings.Count(lower, kw)
	}
	switch {
	case score > 0:
		return types.SentimentPositive
	case score < 0:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

// insightRule is one independent trigger; all rules that match anywhere
// in a message each yield a tag, so a message can carry zero to many.
type insightRule struct {
	kind types.InsightKind
	re   *regexp.Regexp
}

var insightRules = []insightRule{
	{types.InsightConclusion, regexp.MustCompile(`(?i)\b(?:therefore|thus|in conclusion|consequently|hence)\b`)},
	{types.InsightContrast, regexp.MustCompile(`(?i)\b(?:however|on the other hand|in contrast|whereas)\b`)},
	{types.InsightSpeculation, regexp.MustCompile(`(?i)\b(?:perhaps|maybe|possibly|might be|could be)\b`)},
	{types.InsightEvidence, regexp.MustCompile(`(?i)\b(?:for example|for instance|evidence|studies show)\b`)},
	{types.InsightInquiry, regexp.MustCompile(`\?`)},
	{types.InsightAgreement, regexp.MustCompile(`(?i)\b(?:i agree|agreed|exactly|precisely)\b`)},
	{types.InsightDisagreement, regexp.MustCompile(`(?i)\b(?:i disagree|on the contrary|i must push back)\b`)},
	{types.InsightDevelopment, regexp.MustCompile(`(?i)\b(?:building on|to extend|furthermore|moreover)\b`)},
}

// detectInsights runs every trigger against the text and tags each match
// with a bounded excerpt.
func detectInsights(text string) []types.Insight {
	excerpt := truncateText(text, insightExcerptLen)
	var out []types.Insight
	for _, rule := range insightRules {
		if rule.re.MatchString(text) {
			out = append(out, types.Insight{Kind: rule.kind, Excerpt: excerpt})
		}
	}
	return out
}
