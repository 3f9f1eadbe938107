// Package persistence resolves the on-disk state directory, replays a
// session's JSONL log back into the in-memory data model, and lists
// persisted sessions for a workspace — the generalization of the
// teacher's per-project hashed session directory (agent/paths.go,
// agent/session.go) to a flat, workspace-filtered JSONL layout.
package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

const defaultHomeDirName = ".myclaw"

// HomeDir resolves the myclaw home directory: $MYCLAW_HOME if set,
// otherwise ~/.myclaw.
func HomeDir() (string, error) {
	if dir := os.Getenv("MYCLAW_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultHomeDirName), nil
}

// SessionsDir returns the path <homeDir>/sessions; it does not create it.
func SessionsDir(homeDir string) string {
	return filepath.Join(homeDir, "sessions")
}

// MetricsDir returns <homeDir>/metrics.
func MetricsDir(homeDir string) string {
	return filepath.Join(homeDir, "metrics")
}

// LogPath returns the JSONL log path for a given session id.
func LogPath(homeDir, sessionID string) string {
	return filepath.Join(SessionsDir(homeDir), sessionID+".jsonl")
}

// PersistedSessionSummary is one entry in a workspace's session listing.
type PersistedSessionSummary struct {
	ID            string
	Workspace     string
	StartedAt     time.Time
	LastUpdatedAt time.Time
}

// record mirrors subscriber.logRecord's wire shape loosely enough to
// parse every field persistence cares about without importing the
// subscriber package (which would create an import cycle back through
// session/eventbus wiring done at the cmd layer).
type record struct {
	Type      string           `json:"type"`
	At        time.Time        `json:"at"`
	SessionID string           `json:"session_id"`
	Workspace string           `json:"workspace,omitempty"`
	Message   *session.Message `json:"message,omitempty"`
	Summary   *summaryRecord   `json:"summary,omitempty"`
}

type summaryRecord struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Content string `json:"content"`
}

// readRecords parses every line of a JSONL log, skipping malformed lines
// rather than failing the whole read (spec error taxonomy #6: replay
// corruption skips the offending line and continues).
func readRecords(path string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}

// ListForWorkspace enumerates sessions/*.jsonl, parses each, and returns
// summaries for sessions matching workspace (or carrying no workspace at
// all, an older/degraded record), sorted by lastUpdatedAt (falling back
// to startedAt) descending.
func ListForWorkspace(homeDir, workspace string) ([]PersistedSessionSummary, error) {
	dir := SessionsDir(homeDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var summaries []PersistedSessionSummary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		records, err := readRecords(filepath.Join(dir, e.Name()))
		if err != nil || len(records) == 0 {
			continue
		}
		summary, ok := summarize(records)
		if !ok {
			continue
		}
		if summary.Workspace != "" && summary.Workspace != workspace {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return lastActivity(summaries[i]).After(lastActivity(summaries[j]))
	})
	return summaries, nil
}

func lastActivity(s PersistedSessionSummary) time.Time {
	if !s.LastUpdatedAt.IsZero() {
		return s.LastUpdatedAt
	}
	return s.StartedAt
}

func summarize(records []record) (PersistedSessionSummary, bool) {
	var s PersistedSessionSummary
	found := false
	for _, r := range records {
		if r.Type == "session_start" {
			s.ID = r.SessionID
			s.Workspace = r.Workspace
			s.StartedAt = r.At
			found = true
		}
		if !r.At.IsZero() {
			s.LastUpdatedAt = r.At
		}
	}
	return s, found
}

// Resume reconstructs a session from its JSONL log: message list
// (preserving tool_call_id/tool_name/tool_calls), summary blocks
// (compressedCount = max(to+1) across every summary record), and a
// system message synthesized if the log never captured one.
func Resume(homeDir, sessionID string, rt session.Runtime, fallbackSystemPrompt string) (*session.Session, error) {
	path := LogPath(homeDir, sessionID)
	records, err := readRecords(path)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("resume %s: no records found", sessionID)
	}

	sess := &session.Session{
		ID:        sessionID,
		Runtime:   rt,
		ReadPaths: make(map[string]bool),
	}

	sawSystem := false
	for _, r := range records {
		switch r.Type {
		case "session_start":
			sess.Workspace = r.Workspace
			sess.StartedAt = r.At
			sess.LastUpdatedAt = r.At
		case "message":
			if r.Message == nil {
				continue
			}
			if r.Message.Role == session.RoleSystem {
				sawSystem = true
			}
			sess.Append(*r.Message)
		case "summary":
			if r.Summary == nil {
				continue
			}
			block := session.SummaryBlock{Timestamp: r.At, From: r.Summary.From, To: r.Summary.To, Content: r.Summary.Content}
			sess.Summaries = append(sess.Summaries, block)
			if block.To+1 > sess.CompressedCount {
				sess.CompressedCount = block.To + 1
			}
		}
	}

	if !sawSystem {
		sess.Messages = append([]session.Message{session.NewMessage(session.RoleSystem, fallbackSystemPrompt)}, sess.Messages...)
	}
	if sess.LastUpdatedAt.IsZero() {
		sess.LastUpdatedAt = sess.StartedAt
	}
	return sess, nil
}

// PickSession resolves a chat --resume specifier against a summaries
// list already sorted newest-first: "latest" picks summaries[0], a
// 1-based integer picks by index, anything else is matched by session id.
func PickSession(summaries []PersistedSessionSummary, specifier string) (PersistedSessionSummary, error) {
	if specifier == "latest" {
		if len(summaries) == 0 {
			return PersistedSessionSummary{}, fmt.Errorf("no sessions available")
		}
		return summaries[0], nil
	}
	if n, err := strconv.Atoi(specifier); err == nil {
		idx := n - 1
		if idx < 0 || idx >= len(summaries) {
			return PersistedSessionSummary{}, fmt.Errorf("session index %d out of range", n)
		}
		return summaries[idx], nil
	}
	for _, s := range summaries {
		if s.ID == specifier {
			return s, nil
		}
	}
	return PersistedSessionSummary{}, fmt.Errorf("no session matching %q", specifier)
}
