package memory

import (
	"strings"
)

// TruncationMarker is emitted in a built prompt whenever older history was
// cut to fit the character budget. Truncation is visible, never silent.
const TruncationMarker = "[truncated]"

// BuildPrompt assembles the outbound context for the generator under a
// strict priority order: system text first (always included), then
// attached file context, then conversational history newest-first until
// the running character budget would be exceeded. Selected history is
// emitted in chronological order.
func (m *Manager) BuildPrompt(system string, attachments []Attachment, budgetChars int) string {
	history := m.Context()
	return BuildPrompt(system, attachments, history, budgetChars)
}

// BuildPrompt is the assembly used by Manager.BuildPrompt, exposed for
// callers holding their own message sequence.
func BuildPrompt(system string, attachments []Attachment, history []Message, budgetChars int) string {
	var b strings.Builder

	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}

	for _, att := range attachments {
		b.WriteString("--- ")
		b.WriteString(att.Name)
		b.WriteString(" ---\n")
		b.WriteString(att.Content)
		b.WriteString("\n\n")
	}

	// Walk history newest-first: recent turns are worth more than old ones.
	remaining := budgetChars
	selected := make([]Message, 0, len(history))
	truncated := false
	for i := len(history) - 1; i >= 0; i-- {
		line := formatTurn(history[i])
		if budgetChars > 0 && len(line) > remaining {
			truncated = true
			break
		}
		selected = append(selected, history[i])
		remaining -= len(line)
	}

	if truncated {
		b.WriteString(TruncationMarker)
		b.WriteString("\n")
	}

	// Selected newest-first; emit in chronological order.
	for i := len(selected) - 1; i >= 0; i-- {
		b.WriteString(formatTurn(selected[i]))
	}

	return b.String()
}

func formatTurn(msg Message) string {
	return msg.Role + ": " + msg.Content + "\n"
}
