package turn

import (
	"strings"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// compress folds the oldest uncompressed messages into SummaryBlocks
// while the uncompressed backlog exceeds compressionTrigger, advancing
// compressedCount by compressionChunk each time (clamped to what's
// available) and emitting a summary event per block.
func (e *Engine) compress(sess *session.Session) {
	for sess.NonSystemCount()-sess.CompressedCount > compressionTrigger {
		nonSystem := sess.NonSystemMessages()
		from := sess.CompressedCount
		to := from + compressionChunk - 1
		if to >= len(nonSystem) {
			to = len(nonSystem) - 1
		}
		if to < from {
			return
		}

		block := session.SummaryBlock{
			Timestamp: time.Now(),
			From:      from,
			To:        to,
			Content:   summarize(nonSystem[from : to+1]),
		}
		sess.AppendSummary(block)
		e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSummary, SessionID: sess.ID, At: block.Timestamp, Summary: block})
	}
}

// summarize renders a compressed chunk as the last few user intents,
// assistant actions, and tool results, each flattened to one line and
// bounded to roughly 180 characters.
func summarize(chunk []session.Message) string {
	const maxLineLen = 180
	var userIntents, assistantActions, toolResults []string

	for _, m := range chunk {
		line := oneLine(m.Content, maxLineLen)
		if line == "" {
			continue
		}
		switch m.Role {
		case session.RoleUser:
			userIntents = append(userIntents, line)
		case session.RoleAssistant:
			assistantActions = append(assistantActions, line)
		case session.RoleTool:
			toolResults = append(toolResults, line)
		}
	}

	userIntents = lastN(userIntents, 3)
	assistantActions = lastN(assistantActions, 3)
	toolResults = lastN(toolResults, 5)

	var b strings.Builder
	writeSection := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.Join(items, " | "))
	}
	writeSection("User", userIntents)
	writeSection("Assistant", assistantActions)
	writeSection("Tools", toolResults)

	return b.String()
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
