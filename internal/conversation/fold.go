// Package conversation owns discussion transcripts: prompt folding, context
// bootstrapping and the single path through which discussions talk to the LLM.
package conversation

import (
	"strings"

	"sitepilot/internal/models"
)

const turnSeparator = "\n\n"

// Fold renders a transcript into one prompt. System turns are emitted verbatim,
// user and assistant turns are labelled, and turns are separated by a blank line.
//
// Fold is pure: appending a message and folding again keeps the previous output as a prefix.
func Fold(messages []models.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString(turnSeparator)
		}
		b.WriteString(renderTurn(m))
	}
	return b.String()
}

func renderTurn(m models.Message) string {
	switch m.Role {
	case models.RoleSystem:
		return m.Content
	case models.RoleUser:
		return "Human: " + m.Content
	default:
		return "Assistant: " + m.Content
	}
}
