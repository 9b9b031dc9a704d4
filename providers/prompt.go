package providers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/colloquyhq/colloquy/types"
)

// promptEncoding is the tokenizer used for history budgeting.
const promptEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// countTokens measures s with the shared encoding. When the encoding
// cannot be initialized (offline environments), it falls back to a
// whitespace word count, which over-admits slightly but keeps prompts
// deterministic.
func countTokens(s string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(promptEncoding)
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return len(strings.Fields(s))
	}
	return len(enc.Encode(s, nil, nil))
}

// BuildPrompt constructs the instruction text for one provider turn.
// Pure function of its inputs: the provider's display name, the topic,
// the participant roster, and the transcript. When tokenBudget > 0 the
// oldest transcript lines are dropped until the rendered prompt fits.
func BuildPrompt(name, topic string, participants []string, history []types.Message, tokenBudget int) string {
	header := fmt.Sprintf(
		"You are %s, one voice in a moderated discussion on %q.\nParticipants: %s.\nRespond with one substantive contribution. Engage directly with the most recent points.\n\nTranscript:\n",
		name, topic, strings.Join(participants, ", "),
	)

	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = fmt.Sprintf("%s: %s", m.Speaker, m.Content)
	}

	render := func(from int) string {
		return header + strings.Join(lines[from:], "\n")
	}

	start := 0
	if tokenBudget > 0 {
		for start < len(lines)-1 && countTokens(render(start)) > tokenBudget {
			start++
		}
	}
	return render(start)
}
