package turn

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/provider"
	"github.com/nextlevelbuilder/myclaw/internal/session"
	"github.com/nextlevelbuilder/myclaw/internal/tools"
	"github.com/nextlevelbuilder/myclaw/internal/workspace"
)

// scriptedProvider returns one scripted (text, calls) pair per Chat call,
// repeating the last entry once the script is exhausted.
type scriptedProvider struct {
	script []scriptedResponse
	calls  int
}

type scriptedResponse struct {
	text  string
	calls []session.ToolCall
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []session.Message, toolDefs []provider.ToolDef) (string, []session.ToolCall, error) {
	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++
	r := p.script[idx]
	return r.text, r.calls, nil
}

func newTestEngine(t *testing.T, prov provider.Provider) (*Engine, *session.Session) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	catalog := tools.NewCatalog(ws, nil)
	bus := eventbus.New()
	engine := NewEngine(bus, catalog, prov)
	sess := session.New("", root, "", session.Runtime{MaxSteps: 8, ContextWindowSize: 20}, "you are a test agent")
	return engine, sess
}

func TestRunTurnReturnsFinalTextWithNoToolCalls(t *testing.T) {
	engine, sess := newTestEngine(t, provider.NewMock())
	got := engine.RunTurn(context.Background(), sess, "hello there")
	if got != "hello there" {
		t.Fatalf("expected mock echo, got %q", got)
	}
}

func TestRunTurnEmitsFinalEvent(t *testing.T) {
	root := t.TempDir()
	ws, _ := workspace.New(root)
	catalog := tools.NewCatalog(ws, nil)
	bus := eventbus.New()
	var gotFinal bool
	bus.Subscribe(func(ev eventbus.AgentEvent) {
		if ev.Type == eventbus.EventFinal {
			gotFinal = true
		}
	})
	engine := NewEngine(bus, catalog, provider.NewMock())
	sess := session.New("", root, "", session.Runtime{MaxSteps: 8, ContextWindowSize: 20}, "sys")
	engine.RunTurn(context.Background(), sess, "hi")
	if !gotFinal {
		t.Fatal("expected a final event to be published")
	}
}

func TestResumeSessionPublishesLogPath(t *testing.T) {
	root := t.TempDir()
	ws, _ := workspace.New(root)
	catalog := tools.NewCatalog(ws, nil)
	bus := eventbus.New()
	var gotLogPath, gotResumedFrom string
	bus.Subscribe(func(ev eventbus.AgentEvent) {
		if ev.Type == eventbus.EventSessionResume {
			gotLogPath = ev.LogPath
			gotResumedFrom = ev.ResumedFrom
		}
	})
	engine := NewEngine(bus, catalog, provider.NewMock())
	sess := session.New("", root, "", session.Runtime{MaxSteps: 8, ContextWindowSize: 20}, "sys")
	sess.LogPath = "/tmp/sessions/s1.jsonl"

	engine.ResumeSession(sess, "s1")

	if gotLogPath != sess.LogPath {
		t.Fatalf("expected session_resume to carry LogPath %q, got %q", sess.LogPath, gotLogPath)
	}
	if gotResumedFrom != "s1" {
		t.Fatalf("expected resumedFrom %q, got %q", "s1", gotResumedFrom)
	}
}

func TestRunTurnExecutesSingleToolCallThenFinalizes(t *testing.T) {
	writeInput, _ := json.Marshal(map[string]any{"path": "note.txt", "content": "hi", "allowCreate": true})
	prov := &scriptedProvider{script: []scriptedResponse{
		{text: "", calls: []session.ToolCall{{Tool: "write_file", Input: writeInput}}},
		{text: "done", calls: nil},
	}}
	engine, sess := newTestEngine(t, prov)
	got := engine.RunTurn(context.Background(), sess, "write a note")
	if got != "done" {
		t.Fatalf("expected final text 'done', got %q", got)
	}

	wrote, err := workspace.New(sess.Workspace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := wrote.ReadText("note.txt")
	if err != nil || content != "hi" {
		t.Fatalf("expected note.txt to be written, got %q err=%v", content, err)
	}
}

func TestRunTurnRejectsMultiMutationBatch(t *testing.T) {
	writeA, _ := json.Marshal(map[string]any{"path": "a.txt", "content": "a", "allowCreate": true})
	writeB, _ := json.Marshal(map[string]any{"path": "b.txt", "content": "b", "allowCreate": true})
	prov := &scriptedProvider{script: []scriptedResponse{
		{text: "", calls: []session.ToolCall{
			{Tool: "write_file", Input: writeA},
			{Tool: "write_file", Input: writeB},
		}},
		{text: "done", calls: nil},
	}}
	engine, sess := newTestEngine(t, prov)
	got := engine.RunTurn(context.Background(), sess, "write two files")
	if got != "done" {
		t.Fatalf("expected eventual final text, got %q", got)
	}

	ws, _ := workspace.New(sess.Workspace)
	if exists, _ := ws.Exists("a.txt"); exists {
		t.Fatal("expected batch-rejected mutation to not be applied")
	}
}

func TestRunTurnStopsAtMaxSteps(t *testing.T) {
	call, _ := json.Marshal(map[string]any{"path": "."})
	prov := &scriptedProvider{script: []scriptedResponse{
		{text: "", calls: []session.ToolCall{{Tool: "list_files", Input: call}}},
	}}
	engine, sess := newTestEngine(t, prov)
	sess.Runtime.MaxSteps = 3
	got := engine.RunTurn(context.Background(), sess, "explore")
	if got != stoppedMessage {
		t.Fatalf("expected stopped message, got %q", got)
	}
}

func TestRunTurnObservesOscillationOnRepeatedExploration(t *testing.T) {
	call, _ := json.Marshal(map[string]any{"path": "."})
	script := make([]scriptedResponse, 0, 6)
	for i := 0; i < 6; i++ {
		script = append(script, scriptedResponse{text: "", calls: []session.ToolCall{{Tool: "list_files", Input: call}}})
	}
	prov := &scriptedProvider{script: script}

	root := t.TempDir()
	ws, _ := workspace.New(root)
	catalog := tools.NewCatalog(ws, nil)
	bus := eventbus.New()
	var lastOscillation eventbus.OscillationMetrics
	bus.Subscribe(func(ev eventbus.AgentEvent) {
		if ev.Type == eventbus.EventOscillationObserve {
			lastOscillation = ev.Oscillation
		}
	})
	engine := NewEngine(bus, catalog, prov)
	sess := session.New("", root, "", session.Runtime{MaxSteps: 6, ContextWindowSize: 20}, "sys")
	engine.RunTurn(context.Background(), sess, "explore forever")

	if !lastOscillation.PossibleOscillation {
		t.Fatalf("expected possible oscillation to be flagged, got %+v", lastOscillation)
	}
}

func TestBuildContextStripsLeadingOrphanedToolMessages(t *testing.T) {
	engine, sess := newTestEngine(t, provider.NewMock())
	sess.Runtime.ContextWindowSize = 2
	sess.Append(session.NewMessage(session.RoleUser, "first"))
	sess.Append(session.NewToolResult("id1", "read_file", "orphaned"))
	sess.Append(session.NewMessage(session.RoleAssistant, "second"))

	ctxMessages, trimmed := engine.buildContext(sess)
	if trimmed == 0 {
		t.Fatal("expected a nonzero trim count")
	}
	for _, m := range ctxMessages {
		if m.Role == session.RoleTool {
			t.Fatal("expected no leading tool-role messages in the built context")
		}
	}
}

func TestCompressAdvancesCompressedCountAndEmitsSummary(t *testing.T) {
	engine, sess := newTestEngine(t, provider.NewMock())
	for i := 0; i < 41; i++ {
		sess.Append(session.NewMessage(session.RoleUser, "message"))
	}
	var summaries int
	unsub := engine.bus.Subscribe(func(ev eventbus.AgentEvent) {
		if ev.Type == eventbus.EventSummary {
			summaries++
		}
	})
	defer unsub()

	engine.compress(sess)

	if sess.CompressedCount == 0 {
		t.Fatal("expected compressedCount to advance")
	}
	if summaries == 0 {
		t.Fatal("expected at least one summary event")
	}
}
