package turn

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// buildContext assembles the message slice sent to the provider: the
// system message, a compressed-memory system message summarizing the
// tail of prior summary blocks (if any), then a sliding window of recent
// non-system messages. A window that begins with an orphaned tool-role
// message (its prompting assistant turn fell outside the window) has
// those leading tool messages stripped; the count stripped is returned so
// the caller can emit a context_trim event.
func (e *Engine) buildContext(sess *session.Session) ([]session.Message, int) {
	var out []session.Message

	if sys, ok := sess.SystemMessage(); ok {
		out = append(out, sys)
	}

	if len(sess.Summaries) > 0 {
		tail := sess.Summaries
		if len(tail) > maxSummaryBlocksInContext {
			tail = tail[len(tail)-maxSummaryBlocksInContext:]
		}
		var b strings.Builder
		b.WriteString("Compressed memory blocks:\n")
		for _, s := range tail {
			fmt.Fprintf(&b, "[%d-%d] %s\n\n", s.From, s.To, s.Content)
		}
		out = append(out, session.NewMessage(session.RoleSystem, strings.TrimRight(b.String(), "\n")))
	}

	nonSystem := sess.NonSystemMessages()
	start := sess.CompressedCount
	if windowStart := len(nonSystem) - sess.Runtime.ContextWindowSize; windowStart > start {
		start = windowStart
	}
	if start < 0 {
		start = 0
	}
	if start > len(nonSystem) {
		start = len(nonSystem)
	}
	window := nonSystem[start:]

	trimmed := 0
	for len(window) > 0 && window[0].Role == session.RoleTool {
		window = window[1:]
		trimmed++
	}

	return append(out, window...), trimmed
}
