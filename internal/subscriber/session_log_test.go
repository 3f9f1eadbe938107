package subscriber

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

func TestSessionLogWritesRecordsInOrder(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.jsonl")

	log := NewSessionLog()
	bus := eventbus.New()
	log.Register(bus)

	now := time.Now()
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventStart, SessionID: "s1", At: now, LogPath: logPath, System: session.NewMessage(session.RoleSystem, "sys")})
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventMessage, SessionID: "s1", At: now, Message: session.NewMessage(session.RoleUser, "hi")})
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSessionEnd, SessionID: "s1", At: now})
	log.Flush()

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unexpected unmarshal error: %v", err)
		}
		types = append(types, rec.Type)
	}

	want := []string{"session_start", "message", "message", "session_end"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i, ty := range want {
		if types[i] != ty {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
}

// TestSessionLogSurvivesResume guards against a worker that's never
// reopened after EventSessionResume, which would silently drop every
// subsequent record for a resumed session.
func TestSessionLogSurvivesResume(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.jsonl")

	log := NewSessionLog()
	bus := eventbus.New()
	log.Register(bus)

	now := time.Now()
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSessionResume, SessionID: "s1", At: now, LogPath: logPath, ResumedFrom: "s1"})
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventMessage, SessionID: "s1", At: now, Message: session.NewMessage(session.RoleUser, "continue")})
	bus.Publish(eventbus.AgentEvent{Type: eventbus.EventSessionEnd, SessionID: "s1", At: now})
	log.Flush()

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unexpected unmarshal error: %v", err)
		}
		types = append(types, rec.Type)
	}

	want := []string{"session_resume", "message", "session_end"}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v (resume must reopen the worker)", want, types)
	}
	for i, ty := range want {
		if types[i] != ty {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
}
