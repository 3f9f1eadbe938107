// Package session defines the core conversation data model — messages,
// summary blocks, and the live session record — along with the in-memory
// session store and the per-session interrupt queue used to deliver
// asynchronous soft-gate failures into the next turn.
package session

import "encoding/json"

// Role identifies who produced a Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a parsed tool invocation requested by the model: a catalog
// tool name paired with its input mapping. ProviderID is the upstream
// tool-call id (when the provider issues structured tool calls) and is
// echoed back on the corresponding tool-role Message so stricter gateways
// can correlate request and result.
type ToolCall struct {
	Tool       string          `json:"tool"`
	Input      json.RawMessage `json:"input"`
	ProviderID string          `json:"provider_id,omitempty"`
}

// Message is one immutable turn of conversation history. Content carries
// plain text; ToolCalls is populated only on assistant messages that
// requested tool use, and must be replayed verbatim on subsequent provider
// requests so that tool-role messages are never orphaned from the
// assistant turn that produced them.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// NewMessage builds a plain text message for the given role.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewToolResult builds a tool-role message carrying a tool's output.
func NewToolResult(toolCallID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, ToolName: toolName}
}

// NewAssistantToolCalls builds an assistant message carrying tool calls,
// with optional accompanying text.
func NewAssistantToolCalls(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// IsMutation reports whether a tool name is a mutating (write) tool.
func IsMutation(tool string) bool {
	switch tool {
	case "write_file", "apply_patch":
		return true
	default:
		return false
	}
}
