// Package provider defines the LLM provider contract used by the turn
// engine — a single Chat round-trip over the session's message history —
// along with a deterministic Mock implementation and an OpenAI-compatible
// HTTP implementation satisfying it.
package provider

import (
	"context"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// ToolDef describes one catalog tool's name, description, and JSON-schema
// input shape, as presented to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  []byte // raw JSON schema
}

// Provider is the contract every LLM backend satisfies: given the full
// message history and the tool catalog, produce the assistant's reply text
// and any tool calls it requested.
type Provider interface {
	Chat(ctx context.Context, messages []session.Message, tools []ToolDef) (text string, calls []session.ToolCall, err error)
}

// EmptyResponseSentinel is the text a provider implementation may return
// when the upstream API genuinely produced neither text nor tool calls
// after exhausting retries; the turn engine replaces it with a
// user-friendly completion notice rather than surfacing the raw sentinel.
const EmptyResponseSentinel = "Model returned an empty response after repeated attempts."

// NormalizeEmptyResponse replaces the empty-response sentinel with a
// user-friendly completion notice; any other text passes through verbatim.
func NormalizeEmptyResponse(text string) string {
	if text == EmptyResponseSentinel {
		return "The model did not produce a response. Please try again or rephrase your request."
	}
	return text
}
