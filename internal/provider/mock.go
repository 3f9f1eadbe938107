package provider

import (
	"context"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// Mock is a deterministic provider for tests and offline use: it echoes
// the most recent user message verbatim and never requests tool calls.
type Mock struct{}

// NewMock returns a Mock provider.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Chat(_ context.Context, messages []session.Message, _ []ToolDef) (string, []session.ToolCall, error) {
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleUser {
			lastUser = messages[i].Content
			break
		}
	}
	return lastUser, nil, nil
}
