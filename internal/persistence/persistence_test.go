package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/session"
	"github.com/nextlevelbuilder/myclaw/internal/subscriber"
)

func writeSessionLog(t *testing.T, homeDir, workspace, sessionID string) {
	t.Helper()
	bus := eventbus.New()
	log := subscriber.NewSessionLog()
	log.Register(bus)

	logPath := LogPath(homeDir, sessionID)
	system := session.NewMessage(session.RoleSystem, "you are a test agent")
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventStart, SessionID: sessionID, At: time.Now(), Workspace: workspace, LogPath: logPath, System: system})

	userMsg := session.NewMessage(session.RoleUser, "hello")
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventMessage, SessionID: sessionID, At: time.Now(), Message: userMsg})

	assistantMsg := session.NewMessage(session.RoleAssistant, "hi there")
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventMessage, SessionID: sessionID, At: time.Now(), Message: assistantMsg})

	block := session.SummaryBlock{Timestamp: time.Now(), From: 0, To: 1, Content: "greeting exchanged"}
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSummary, SessionID: sessionID, At: time.Now(), Summary: block})

	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSessionEnd, SessionID: sessionID, At: time.Now()})
	log.Flush()
}

func TestResumeReconstructsMessagesAndSummaries(t *testing.T) {
	home := t.TempDir()
	writeSessionLog(t, home, "/work/proj", "sess-1")

	sess, err := Resume(home, "sess-1", session.Runtime{MaxSteps: 8, ContextWindowSize: 20}, "fallback system prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Workspace != "/work/proj" {
		t.Fatalf("expected workspace to be restored, got %q", sess.Workspace)
	}
	if got, want := sess.NonSystemCount(), 2; got != want {
		t.Fatalf("expected %d non-system messages, got %d", want, got)
	}
	if len(sess.Summaries) != 1 || sess.CompressedCount != 2 {
		t.Fatalf("expected one summary and compressedCount=2, got %d summaries, compressedCount=%d", len(sess.Summaries), sess.CompressedCount)
	}
	if _, ok := sess.SystemMessage(); !ok {
		t.Fatal("expected a system message to be present")
	}
}

func TestResumeInjectsSystemMessageWhenMissing(t *testing.T) {
	home := t.TempDir()
	sessionsDir := SessionsDir(home)
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(sessionsDir, "sess-2.jsonl")
	lines := `{"type":"session_start","at":"2026-01-01T00:00:00Z","session_id":"sess-2","workspace":"/work"}
{"type":"message","at":"2026-01-01T00:00:01Z","session_id":"sess-2","message":{"role":"user","content":"hi"}}
`
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, err := Resume(home, "sess-2", session.Runtime{MaxSteps: 8, ContextWindowSize: 20}, "fallback system prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sysMsg, ok := sess.SystemMessage()
	if !ok || sysMsg.Content != "fallback system prompt" {
		t.Fatalf("expected injected fallback system message, got %+v ok=%v", sysMsg, ok)
	}
}

func TestResumeSkipsMalformedLines(t *testing.T) {
	home := t.TempDir()
	sessionsDir := SessionsDir(home)
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(sessionsDir, "sess-3.jsonl")
	lines := `{"type":"session_start","at":"2026-01-01T00:00:00Z","session_id":"sess-3","workspace":"/work"}
not valid json at all
{"type":"message","at":"2026-01-01T00:00:01Z","session_id":"sess-3","message":{"role":"user","content":"hi"}}
`
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, err := Resume(home, "sess-3", session.Runtime{MaxSteps: 8, ContextWindowSize: 20}, "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sess.NonSystemCount(); got != 1 {
		t.Fatalf("expected the malformed line to be skipped, got %d non-system messages", got)
	}
}

func TestListForWorkspaceFiltersAndSortsDescending(t *testing.T) {
	home := t.TempDir()
	writeSessionLog(t, home, "/work/a", "sess-old")
	time.Sleep(2 * time.Millisecond)
	writeSessionLog(t, home, "/work/a", "sess-new")
	writeSessionLog(t, home, "/work/b", "sess-other-workspace")

	summaries, err := ListForWorkspace(home, "/work/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions for /work/a, got %d", len(summaries))
	}
	if summaries[0].ID != "sess-new" {
		t.Fatalf("expected newest session first, got %q", summaries[0].ID)
	}
}

func TestPickSessionResolvesLatestIndexAndID(t *testing.T) {
	summaries := []PersistedSessionSummary{
		{ID: "sess-b"},
		{ID: "sess-a"},
	}

	latest, err := PickSession(summaries, "latest")
	if err != nil || latest.ID != "sess-b" {
		t.Fatalf("expected latest to resolve to first entry, got %+v err=%v", latest, err)
	}

	byIndex, err := PickSession(summaries, "2")
	if err != nil || byIndex.ID != "sess-a" {
		t.Fatalf("expected index 2 to resolve to second entry, got %+v err=%v", byIndex, err)
	}

	byID, err := PickSession(summaries, "sess-a")
	if err != nil || byID.ID != "sess-a" {
		t.Fatalf("expected id lookup to succeed, got %+v err=%v", byID, err)
	}

	if _, err := PickSession(summaries, "does-not-exist"); err == nil {
		t.Fatal("expected an error for an unmatched specifier")
	}
}
