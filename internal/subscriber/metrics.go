package subscriber

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
)

// sessionCounters is the per-session running total Metrics maintains
// between metrics_start and metrics_summary.
type sessionCounters struct {
	StartedAt         time.Time
	LastEventAt       time.Time
	ToolCalls         int
	ToolErrors        int
	Turns             int
	OscillationAlerts int
}

// Metrics writes one JSONL file per session under <dir>/<sessionId>.jsonl
// — a metrics_start record, a delta record per observed event, and a
// metrics_summary with totals on session_end — and mirrors the same
// totals onto a private prometheus registry for `myclaw doctor --metrics`.
type Metrics struct {
	mu       sync.Mutex
	sessions map[string]*sessionCounters
	app      *appender
	dir      string

	registry               *prometheus.Registry
	toolCallsTotal         prometheus.Counter
	toolErrorsTotal        prometheus.Counter
	turnsTotal             prometheus.Counter
	oscillationAlertsTotal prometheus.Counter
}

// NewMetrics creates a Metrics subscriber writing JSONL files under dir
// and registers its counters on a fresh, private prometheus.Registry.
func NewMetrics(dir string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		sessions: make(map[string]*sessionCounters),
		app:      newAppender(),
		dir:      dir,
		registry: reg,
		toolCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "myclaw_tool_calls_total",
			Help: "Total tool calls issued by the model across all sessions.",
		}),
		toolErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "myclaw_tool_errors_total",
			Help: "Total tool calls that returned a non-ok result.",
		}),
		turnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "myclaw_turns_total",
			Help: "Total model turns completed across all sessions.",
		}),
		oscillationAlertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "myclaw_oscillation_alerts_total",
			Help: "Total steps flagged as possible oscillation.",
		}),
	}
}

// Registry exposes the private prometheus registry for a metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register subscribes the metrics collector on bus.
func (m *Metrics) Register(bus *eventbus.Bus) eventbus.Unsubscribe {
	return bus.Subscribe(m.handle)
}

type metricsRecord struct {
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id"`

	Tool    string `json:"tool,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`

	Oscillation *eventbus.OscillationMetrics `json:"oscillation,omitempty"`

	ToolCalls         int `json:"tool_calls,omitempty"`
	ToolErrors        int `json:"tool_errors,omitempty"`
	Turns             int `json:"turns,omitempty"`
	OscillationAlerts int `json:"oscillation_alerts,omitempty"`
}

func (m *Metrics) handle(ev eventbus.AgentEvent) {
	switch ev.Type {
	case eventbus.EventStart:
		m.app.open(ev.SessionID, filepath.Join(m.dir, ev.SessionID+".jsonl"))
		m.mu.Lock()
		m.sessions[ev.SessionID] = &sessionCounters{StartedAt: ev.At, LastEventAt: ev.At}
		m.mu.Unlock()
		m.app.write(ev.SessionID, metricsRecord{Type: "metrics_start", At: ev.At, SessionID: ev.SessionID})

	case eventbus.EventSessionResume:
		m.app.open(ev.SessionID, filepath.Join(m.dir, ev.SessionID+".jsonl"))
		m.mu.Lock()
		m.sessions[ev.SessionID] = &sessionCounters{StartedAt: ev.At, LastEventAt: ev.At}
		m.mu.Unlock()
		m.app.write(ev.SessionID, metricsRecord{Type: "session_resume_metric", At: ev.At, SessionID: ev.SessionID})

	case eventbus.EventToolCall:
		m.bump(ev.SessionID, ev.At, func(c *sessionCounters) { c.ToolCalls++ })
		m.toolCallsTotal.Inc()
		m.app.write(ev.SessionID, metricsRecord{Type: "tool_call_metric", At: ev.At, SessionID: ev.SessionID, Tool: ev.ToolCall.Tool})

	case eventbus.EventToolResult:
		ok := ev.ToolOK
		if !ok {
			m.bump(ev.SessionID, ev.At, func(c *sessionCounters) { c.ToolErrors++ })
			m.toolErrorsTotal.Inc()
		} else {
			m.bump(ev.SessionID, ev.At, func(c *sessionCounters) {})
		}
		m.app.write(ev.SessionID, metricsRecord{Type: "tool_result_metric", At: ev.At, SessionID: ev.SessionID, Tool: ev.ToolCall.Tool, OK: &ok})

	case eventbus.EventModelResponse:
		m.app.write(ev.SessionID, metricsRecord{Type: "model_metric", At: ev.At, SessionID: ev.SessionID})

	case eventbus.EventFinal, eventbus.EventMaxSteps:
		m.bump(ev.SessionID, ev.At, func(c *sessionCounters) { c.Turns++ })
		m.turnsTotal.Inc()

	case eventbus.EventOscillationObserve:
		if ev.Oscillation.PossibleOscillation {
			m.bump(ev.SessionID, ev.At, func(c *sessionCounters) { c.OscillationAlerts++ })
			m.oscillationAlertsTotal.Inc()
		} else {
			m.bump(ev.SessionID, ev.At, func(c *sessionCounters) {})
		}
		osc := ev.Oscillation
		m.app.write(ev.SessionID, metricsRecord{Type: "oscillation_metric", At: ev.At, SessionID: ev.SessionID, Oscillation: &osc})

	case eventbus.EventSessionEnd:
		m.mu.Lock()
		c := m.sessions[ev.SessionID]
		delete(m.sessions, ev.SessionID)
		m.mu.Unlock()
		if c != nil {
			m.app.write(ev.SessionID, metricsRecord{
				Type:              "metrics_summary",
				At:                ev.At,
				SessionID:         ev.SessionID,
				ToolCalls:         c.ToolCalls,
				ToolErrors:        c.ToolErrors,
				Turns:             c.Turns,
				OscillationAlerts: c.OscillationAlerts,
			})
		}
		m.app.close(ev.SessionID)
	}
}

func (m *Metrics) bump(sessionID string, at time.Time, f func(*sessionCounters)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	f(c)
	c.LastEventAt = at
}

// Flush waits for every pending metrics write to land.
func (m *Metrics) Flush() {
	m.app.Flush()
}
