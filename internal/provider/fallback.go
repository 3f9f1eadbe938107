package provider

import (
	"encoding/json"
	"strings"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// ParseFallbackToolCall scans assistant text for the first fenced ```json
// block or balanced JSON object, and accepts it as a tool call only if it
// has the shape {"type":"tool_call","tool":<name>,"input":<object>}.
// Malformed or differently-shaped candidates are silently ignored — this
// is a fallback for providers that don't return structured tool calls, not
// a general JSON extractor.
func ParseFallbackToolCall(text string) (session.ToolCall, bool) {
	candidate := extractFencedJSON(text)
	if candidate == "" {
		candidate = extractBalancedObject(text)
	}
	if candidate == "" {
		return session.ToolCall{}, false
	}

	var raw struct {
		Type  string          `json:"type"`
		Tool  string          `json:"tool"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return session.ToolCall{}, false
	}
	if raw.Type != "tool_call" || raw.Tool == "" || len(raw.Input) == 0 {
		return session.ToolCall{}, false
	}
	return session.ToolCall{Tool: raw.Tool, Input: raw.Input}, true
}

func extractFencedJSON(text string) string {
	const fence = "```json"
	start := strings.Index(text, fence)
	if start < 0 {
		return ""
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractBalancedObject returns the first balanced {...} substring in
// text, tracking brace depth while ignoring braces inside string literals.
func extractBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
