package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runtime holds the per-session tunables sourced from config.Runtime.
type Runtime struct {
	MaxSteps          int
	ContextWindowSize int
}

// Session is the live, mutable state of one conversation. It is owned
// exclusively by the Store and, within a turn, by the one turn executing
// against it — at most one turn may run on a given session at a time
// (enforced by the caller holding Session.mu for the duration of RunTurn).
type Session struct {
	mu sync.Mutex

	ID        string
	Workspace string
	LogPath   string
	Runtime   Runtime

	StartedAt     time.Time
	LastUpdatedAt time.Time

	Messages       []Message
	Summaries      []SummaryBlock
	CompressedCount int

	// ReadPaths is the set of canonical paths this session has observed
	// via read_file; write_file/apply_patch on an extant path is rejected
	// unless its canonical path is present here.
	ReadPaths map[string]bool

	// WorkspaceVersion increments on every successful mutation and scopes
	// duplicate low-value-exploration suppression.
	WorkspaceVersion int

	Interrupts InterruptQueue[Message]
}

// New creates a fresh Session with the given id (empty to auto-generate)
// rooted at workspace, with a system message seeded from systemPrompt.
func New(id, workspace, logPath string, rt Runtime, systemPrompt string) *Session {
	if id == "" {
		id = NewID()
	}
	now := time.Now()
	s := &Session{
		ID:            id,
		Workspace:     workspace,
		LogPath:       logPath,
		Runtime:       rt,
		StartedAt:     now,
		LastUpdatedAt: now,
		ReadPaths:     make(map[string]bool),
	}
	s.Messages = append(s.Messages, NewMessage(RoleSystem, systemPrompt))
	return s
}

// NewID generates a session id, preferring a random UUIDv4 and falling
// back to a timestamp+random-hex scheme if UUID generation fails — session
// creation must never throw on id generation alone.
func NewID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return time.Now().UTC().Format("20060102T150405") + "-" + hex.EncodeToString(b)
}

// Lock acquires exclusive access to the session for the duration of a turn.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// NonSystemCount returns the number of messages excluding the leading
// system message (there may also be injected summary-context system
// messages appended later by the turn engine, but those live only in the
// transient context sent to the provider, never in s.Messages).
func (s *Session) NonSystemCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role != RoleSystem {
			n++
		}
	}
	return n
}

// NonSystemMessages returns the messages excluding any system-role entries,
// in original order.
func (s *Session) NonSystemMessages() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// SystemMessage returns the first (and canonical) system message, if any.
func (s *Session) SystemMessage() (Message, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleSystem {
			return m, true
		}
	}
	return Message{}, false
}

// Append adds a message to the session's append-only history.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
	s.LastUpdatedAt = time.Now()
}

// AppendSummary adds a summary block; callers are responsible for
// maintaining the contiguity invariant (From == prior CompressedCount).
func (s *Session) AppendSummary(b SummaryBlock) {
	s.Summaries = append(s.Summaries, b)
	s.CompressedCount = b.To + 1
	s.LastUpdatedAt = time.Now()
}

// MarkRead records that a canonical path has been observed via read_file.
func (s *Session) MarkRead(canonicalPath string) {
	s.ReadPaths[canonicalPath] = true
}

// HasRead reports whether a canonical path has been read in this session.
func (s *Session) HasRead(canonicalPath string) bool {
	return s.ReadPaths[canonicalPath]
}

// BumpWorkspaceVersion increments the workspace version on a successful
// mutation, used to scope the turn engine's exploration-dedup cache.
func (s *Session) BumpWorkspaceVersion() {
	s.WorkspaceVersion++
}
