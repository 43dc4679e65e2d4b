package llm

import (
	"fmt"
	"strings"
)

// SummaryPrompt asks for a compressed roll-up of conversation summaries for
// one aggregation window. maxLen is a character budget, not a token budget.
func SummaryPrompt(summaries []string, window string, maxLen int) string {
	return fmt.Sprintf(`Condense these conversation notes from the past %s into one line.
Keep names and concrete facts, drop filler. At most %d characters.
Reply with the line only, no preamble.

NOTES:
%s`, window, maxLen, strings.Join(summaries, "\n"))
}
