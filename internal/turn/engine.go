// Package turn implements the agent turn engine: the per-session state
// machine that takes a user message, assembles provider context, drives
// the model through zero or more tool calls, and returns a final
// assistant reply — emitting an event at every boundary for the bus's
// subscribers to observe.
package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/provider"
	"github.com/nextlevelbuilder/myclaw/internal/session"
	"github.com/nextlevelbuilder/myclaw/internal/tools"
)

const (
	maxSummaryBlocksInContext = 3
	compressionTrigger        = 40
	compressionChunk          = 20
	oscillationRingCapacity   = 6
)

// stoppedMessage is returned when a turn exhausts its step budget without
// the model producing a final, tool-call-free reply.
const stoppedMessage = "Turn stopped: maximum steps reached without a final response."

// Engine drives turns for any number of sessions concurrently — its own
// state is keyed per session id, so distinct sessions never contend.
// Exclusive access within a single session's turn is the caller's
// responsibility (Session.Lock/Unlock), per the "at most one turn per
// session" invariant.
type Engine struct {
	mu      sync.Mutex
	states  map[string]*sessionTurnState
	bus     *eventbus.Bus
	catalog *tools.Catalog
	prov    provider.Provider
}

// NewEngine creates a turn engine publishing onto bus, dispatching tools
// through catalog, and talking to the model through prov.
func NewEngine(bus *eventbus.Bus, catalog *tools.Catalog, prov provider.Provider) *Engine {
	return &Engine{
		states:  make(map[string]*sessionTurnState),
		bus:     bus,
		catalog: catalog,
		prov:    prov,
	}
}

// sessionTurnState is the turn engine's own per-session bookkeeping —
// exploration-dedup cache and oscillation ring buffers — kept separate
// from session.Session because it's scoped to the engine's observational
// concerns, not the session's durable data model.
type sessionTurnState struct {
	explorationSeen    map[string]bool
	callSigs           *ringBuffer
	outputFingerprints *ringBuffer
	noMutationSteps    int
}

func newSessionTurnState() *sessionTurnState {
	return &sessionTurnState{
		explorationSeen:    make(map[string]bool),
		callSigs:           newRingBuffer(oscillationRingCapacity),
		outputFingerprints: newRingBuffer(oscillationRingCapacity),
	}
}

func (e *Engine) stateFor(id string) *sessionTurnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[id]
	if !ok {
		st = newSessionTurnState()
		e.states[id] = st
	}
	return st
}

// EndSession discards the engine's bookkeeping for a closed session.
func (e *Engine) EndSession(id string) {
	e.mu.Lock()
	delete(e.states, id)
	e.mu.Unlock()
}

// CreateSession publishes the start event that introduces a session.
func (e *Engine) CreateSession(sess *session.Session) {
	system, _ := sess.SystemMessage()
	e.bus.Publish(eventbus.AgentEvent{
		Type:      eventbus.EventStart,
		SessionID: sess.ID,
		At:        time.Now(),
		Workspace: sess.Workspace,
		LogPath:   sess.LogPath,
		System:    system,
	})
}

// ResumeSession publishes the session_resume event for a session rebuilt
// from persisted JSONL.
func (e *Engine) ResumeSession(sess *session.Session, resumedFrom string) {
	e.bus.Publish(eventbus.AgentEvent{
		Type:        eventbus.EventSessionResume,
		SessionID:   sess.ID,
		At:          time.Now(),
		LogPath:     sess.LogPath,
		ResumedFrom: resumedFrom,
	})
}

// CloseSession publishes session_end and discards the engine's bookkeeping.
func (e *Engine) CloseSession(sess *session.Session) {
	e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSessionEnd, SessionID: sess.ID, At: time.Now()})
	e.EndSession(sess.ID)
}

func (e *Engine) publishMessage(sessionID string, m session.Message) {
	e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventMessage, SessionID: sessionID, At: time.Now(), Message: m})
}

// RunTurn appends userText to sess, drives the model/tool loop to
// completion or step exhaustion, and returns the assistant's final reply.
// The caller must hold sess's lock for the duration — Engine does not
// lock it itself, since a caller may need to interleave other
// session-scoped bookkeeping (e.g. persistence) within the same critical
// section.
func (e *Engine) RunTurn(ctx context.Context, sess *session.Session, userText string) string {
	userMsg := session.NewMessage(session.RoleUser, userText)
	sess.Append(userMsg)
	e.publishMessage(sess.ID, userMsg)

	e.compress(sess)

	for _, interrupt := range sess.Interrupts.Drain() {
		sess.Append(interrupt)
		e.publishMessage(sess.ID, interrupt)
	}

	st := e.stateFor(sess.ID)

	for step := 0; step < sess.Runtime.MaxSteps; step++ {
		ctxMessages, trimmed := e.buildContext(sess)
		if trimmed > 0 {
			e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventContextTrim, SessionID: sess.ID, At: time.Now(), TrimmedToolMessages: trimmed})
		}

		e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventModelRequestStart, SessionID: sess.ID, At: time.Now()})
		text, calls, err := e.prov.Chat(ctx, ctxMessages, e.catalog.Definitions())
		if err != nil {
			text = provider.EmptyResponseSentinel
			calls = nil
		}
		text = provider.NormalizeEmptyResponse(text)
		e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventModelResponse, SessionID: sess.ID, At: time.Now(), ResponseText: text})

		if len(calls) == 0 {
			assistantMsg := session.NewMessage(session.RoleAssistant, text)
			sess.Append(assistantMsg)
			e.publishMessage(sess.ID, assistantMsg)
			e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventFinal, SessionID: sess.ID, At: time.Now(), FinalText: text})
			return text
		}

		if mutationCount(calls) > 1 {
			e.rejectBatch(sess, text, calls)
			continue
		}

		assistantMsg := session.NewAssistantToolCalls(text, calls)
		sess.Append(assistantMsg)
		e.publishMessage(sess.ID, assistantMsg)

		mutated := e.executeCalls(ctx, sess, st, calls)

		if mutated {
			st.explorationSeen = make(map[string]bool)
			st.noMutationSteps = 0
		} else {
			st.noMutationSteps++
		}

		osc := computeOscillation(st)
		e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventOscillationObserve, SessionID: sess.ID, At: time.Now(), Oscillation: osc})
	}

	e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventMaxSteps, SessionID: sess.ID, At: time.Now(), StepsTaken: sess.Runtime.MaxSteps})
	return stoppedMessage
}

func mutationCount(calls []session.ToolCall) int {
	n := 0
	for _, c := range calls {
		if session.IsMutation(c.Tool) {
			n++
		}
	}
	return n
}

// rejectBatch rejects every call in a multi-mutation batch without
// executing any of them, per the single-mutation-per-step invariant.
func (e *Engine) rejectBatch(sess *session.Session, text string, calls []session.ToolCall) {
	assistantMsg := session.NewAssistantToolCalls(text, calls)
	sess.Append(assistantMsg)
	e.publishMessage(sess.ID, assistantMsg)

	for _, c := range calls {
		rejection := session.NewToolResult(c.ProviderID, c.Tool, `{"ok":false,"output":"batch rejected: at most one mutation per step"}`)
		sess.Append(rejection)
		e.publishMessage(sess.ID, rejection)
	}
}

// executeCalls dispatches each call in order, applying the exploration
// dedup cache, and reports whether any call performed a successful
// mutation.
func (e *Engine) executeCalls(ctx context.Context, sess *session.Session, st *sessionTurnState, calls []session.ToolCall) bool {
	mutated := false
	for _, c := range calls {
		sig := callSignature(sess.WorkspaceVersion, c)

		if isLowValueExploration(c) && st.explorationSeen[sig] {
			rejection := session.NewToolResult(c.ProviderID, c.Tool, `{"ok":false,"output":"duplicate exploration call rejected"}`)
			e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventToolResult, SessionID: sess.ID, At: time.Now(), ToolCall: c, ToolOutput: "duplicate exploration call rejected", ToolOK: false})
			sess.Append(rejection)
			e.publishMessage(sess.ID, rejection)
			st.callSigs.push(sig)
			st.outputFingerprints.push("")
			continue
		}

		e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventToolCall, SessionID: sess.ID, At: time.Now(), ToolCall: c})
		res := e.catalog.Execute(ctx, sess, c)
		e.bus.Publish(eventbus.AgentEvent{Type: eventbus.EventToolResult, SessionID: sess.ID, At: time.Now(), ToolCall: c, ToolOutput: res.Output, ToolOK: res.OK})

		payload, _ := json.Marshal(struct {
			OK     bool   `json:"ok"`
			Output string `json:"output"`
		}{OK: res.OK, Output: res.Output})
		resultMsg := session.NewToolResult(c.ProviderID, c.Tool, fmt.Sprintf("TOOL_RESULT %s", payload))
		sess.Append(resultMsg)
		e.publishMessage(sess.ID, resultMsg)

		if isLowValueExploration(c) {
			st.explorationSeen[sig] = true
		}
		if res.OK && session.IsMutation(c.Tool) {
			mutated = true
		}

		st.callSigs.push(sig)
		st.outputFingerprints.push(fingerprint(res.Output))
	}
	return mutated
}

func callSignature(workspaceVersion int, c session.ToolCall) string {
	return fmt.Sprintf("%d:%s:%s", workspaceVersion, c.Tool, string(c.Input))
}

// isLowValueExploration reports whether a call is a read-only exploration
// tool cheap enough to be worth deduplicating within a workspace version.
func isLowValueExploration(c session.ToolCall) bool {
	switch c.Tool {
	case "list_files", "search_workspace":
		return true
	case "run_shell":
		var in struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(c.Input, &in); err != nil {
			return false
		}
		cmd := strings.TrimSpace(in.Command)
		return cmd == "pwd" || strings.HasPrefix(cmd, "pwd ") || cmd == "ls" || strings.HasPrefix(cmd, "ls ")
	default:
		return false
	}
}
