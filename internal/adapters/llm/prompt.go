package llm

import (
	"strings"

	"github.com/PabloGalante/spark-agent/internal/domain"
)

// withHistory appends the previous coach replies to the prompt so the model
// does not repeat itself. The history already holds at most ten entries.
func withHistory(prompt string, coachCtx domain.CoachContext) string {
	if len(coachCtx.History) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nYour previous replies in this session (oldest first):\n")
	for _, h := range coachCtx.History {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}
