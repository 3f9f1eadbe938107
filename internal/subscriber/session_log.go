package subscriber

import (
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// SessionLog appends a JSONL record to <logPath> for every event on a
// session's lifecycle, one file per session, writes serialized through a
// per-session worker so lines are never interleaved or reordered.
type SessionLog struct {
	app *appender
}

// NewSessionLog creates an empty SessionLog.
func NewSessionLog() *SessionLog {
	return &SessionLog{app: newAppender()}
}

// Register subscribes the log on bus and returns the unsubscribe func.
func (s *SessionLog) Register(bus *eventbus.Bus) eventbus.Unsubscribe {
	return bus.Subscribe(s.handle)
}

type logRecord struct {
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id"`

	Workspace   string           `json:"workspace,omitempty"`
	ResumedFrom string           `json:"resumed_from,omitempty"`
	Message     *session.Message `json:"message,omitempty"`
	Summary     *summaryPayload  `json:"summary,omitempty"`
}

type summaryPayload struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Content string `json:"content"`
}

func (s *SessionLog) handle(ev eventbus.AgentEvent) {
	switch ev.Type {
	case eventbus.EventStart:
		s.app.open(ev.SessionID, ev.LogPath)
		s.app.write(ev.SessionID, logRecord{Type: "session_start", At: ev.At, SessionID: ev.SessionID, Workspace: ev.Workspace})
		system := ev.System
		s.app.write(ev.SessionID, logRecord{Type: "message", At: ev.At, SessionID: ev.SessionID, Message: &system})
	case eventbus.EventSessionResume:
		s.app.open(ev.SessionID, ev.LogPath)
		s.app.write(ev.SessionID, logRecord{Type: "session_resume", At: ev.At, SessionID: ev.SessionID, ResumedFrom: ev.ResumedFrom})
	case eventbus.EventMessage:
		msg := ev.Message
		s.app.write(ev.SessionID, logRecord{Type: "message", At: ev.At, SessionID: ev.SessionID, Message: &msg})
	case eventbus.EventSummary:
		s.app.write(ev.SessionID, logRecord{Type: "summary", At: ev.At, SessionID: ev.SessionID, Summary: &summaryPayload{
			From:    ev.Summary.From,
			To:      ev.Summary.To,
			Content: ev.Summary.Content,
		}})
	case eventbus.EventSessionEnd:
		s.app.write(ev.SessionID, logRecord{Type: "session_end", At: ev.At, SessionID: ev.SessionID})
		s.app.close(ev.SessionID)
	}
}

// Flush waits for every pending write across every open session to land.
func (s *SessionLog) Flush() {
	s.app.Flush()
}
