package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// OpenAICompat talks to any OpenAI-Chat-Completions-shaped endpoint — used
// for both the "openai" and "anthropic" config provider values, the latter
// pointed at an Anthropic-compatible gateway rather than the native
// Messages API (see SPEC_FULL.md §9 for why a native Anthropic wire
// adapter is out of scope here).
type OpenAICompat struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client

	// Timeout bounds a single attempt; RetryCount bounds how many times a
	// timed-out or transport-failed attempt is retried.
	Timeout    time.Duration
	RetryCount int
}

// NewOpenAICompat constructs a client with the given tunables. HTTPClient
// defaults to a bare *http.Client with no overall timeout — per-attempt
// bounding is via Timeout/context instead, so retries aren't cut short by
// a client-wide deadline.
func NewOpenAICompat(apiKey, model, baseURL string, timeout time.Duration, retryCount int) *OpenAICompat {
	return &OpenAICompat{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Timeout:    timeout,
		RetryCount: retryCount,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
}

type wireMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireToolCallFn  `json:"function"`
}

type wireToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat implements Provider. On the final attempt, if the upstream response
// carries neither text nor tool calls, the empty-response sentinel is
// returned as text so the turn loop can close cleanly instead of erroring.
func (c *OpenAICompat) Chat(ctx context.Context, messages []session.Message, tools []ToolDef) (string, []session.ToolCall, error) {
	body := chatRequest{
		Model:    c.Model,
		Messages: toWireMessages(messages),
		Tools:    toWireTools(tools),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var resp chatResponse
	retries := c.RetryCount
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		}
		resp, lastErr = c.doRequest(attemptCtx, payload)
		if cancel != nil {
			cancel()
		}
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
	}

	if lastErr != nil {
		// Provider transient error exhausted retries: fall back to a safe
		// textual completion so the turn can close instead of erroring.
		return EmptyResponseSentinel, nil, nil
	}

	if len(resp.Choices) == 0 {
		return EmptyResponseSentinel, nil, nil
	}

	choice := resp.Choices[0]
	text := choice.Message.Content
	calls := fromWireToolCalls(choice.Message.ToolCalls)

	// Fall back to scanning assistant text for an embedded tool-call blob
	// when the gateway didn't return structured tool calls.
	if len(calls) == 0 {
		if parsed, ok := ParseFallbackToolCall(text); ok {
			calls = []session.ToolCall{parsed}
			text = ""
		}
	}

	if text == "" && len(calls) == 0 {
		return EmptyResponseSentinel, nil, nil
	}

	return text, calls, nil
}

func (c *OpenAICompat) doRequest(ctx context.Context, payload []byte) (chatResponse, error) {
	var out chatResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("upstream error (HTTP %d): %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal response: %w", err)
	}
	return out, nil
}

func toWireMessages(messages []session.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ProviderID,
				Type: "function",
				Function: wireToolCallFn{
					Name:      tc.Tool,
					Arguments: string(tc.Input),
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func toWireTools(tools []ToolDef) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		})
	}
	return out
}

func fromWireToolCalls(calls []wireToolCall) []session.ToolCall {
	out := make([]session.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, session.ToolCall{
			Tool:       c.Function.Name,
			Input:      json.RawMessage(c.Function.Arguments),
			ProviderID: c.ID,
		})
	}
	return out
}
