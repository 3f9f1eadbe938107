// Package eventbus implements the in-process publish/subscribe fan-out
// that every observability and soft-gate subscriber hangs off of. The bus
// is synchronous and error-isolated: a panicking or erroring handler never
// interrupts delivery to other handlers or to the publisher.
package eventbus

import (
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// EventType discriminates the AgentEvent tagged union. Every consumer must
// switch exhaustively over these.
type EventType string

const (
	EventStart            EventType = "start"
	EventSessionResume    EventType = "session_resume"
	EventSessionEnd       EventType = "session_end"
	EventMessage          EventType = "message"
	EventSummary          EventType = "summary"
	EventContextTrim      EventType = "context_trim"
	EventModelRequestStart EventType = "model_request_start"
	EventModelResponse    EventType = "model_response"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventOscillationObserve EventType = "oscillation_observe"
	EventFinal            EventType = "final"
	EventMaxSteps         EventType = "max_steps"
)

// AgentEvent is the tagged union published at every turn-loop boundary.
// Every event carries SessionID; Start both introduces a session and
// carries its id.
type AgentEvent struct {
	Type      EventType
	SessionID string
	At        time.Time

	// EventStart
	Workspace string
	System    session.Message

	// EventStart / EventSessionResume
	LogPath string

	// EventSessionResume
	ResumedFrom string

	// EventMessage
	Message session.Message

	// EventSummary
	Summary session.SummaryBlock

	// EventContextTrim
	TrimmedToolMessages int

	// EventModelResponse
	ResponseText string

	// EventToolCall / EventToolResult
	ToolCall   session.ToolCall
	ToolOutput string
	ToolOK     bool

	// EventOscillationObserve
	Oscillation OscillationMetrics

	// EventFinal
	FinalText string

	// EventMaxSteps
	StepsTaken int
}

// OscillationMetrics is the per-step snapshot computed by the turn engine.
type OscillationMetrics struct {
	RepeatRatio         float64
	NoveltyRatio        float64
	NoMutationSteps      int
	PossibleOscillation bool
}
