package subscriber

import (
	"sync"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/profile"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// Profile accumulates heuristic signals per session and merges them into a
// single durable JSON profile at path on every summary and session_end —
// the machine-merged generalization of a human-editable project-memory
// file, except the profile is cross-session and per-user rather than
// per-project.
type Profile struct {
	mu      sync.Mutex
	path    string
	pending map[string]profile.StableProfile
}

// NewProfile creates a Profile subscriber persisting to path.
func NewProfile(path string) *Profile {
	return &Profile{path: path, pending: make(map[string]profile.StableProfile)}
}

// Register subscribes the profile learner on bus.
func (p *Profile) Register(bus *eventbus.Bus) eventbus.Unsubscribe {
	return bus.Subscribe(p.handle)
}

func (p *Profile) handle(ev eventbus.AgentEvent) {
	switch ev.Type {
	case eventbus.EventStart:
		p.mutate(ev.SessionID, func(acc profile.StableProfile) profile.StableProfile {
			return profile.Merge(acc, profile.Signals{LastWorkspace: ev.Workspace})
		})

	case eventbus.EventMessage:
		if ev.Message.Role != session.RoleUser {
			return
		}
		signals := ExtractSignals(ev.Message.Content)
		p.mutate(ev.SessionID, func(acc profile.StableProfile) profile.StableProfile {
			return profile.Merge(acc, signals)
		})

	case eventbus.EventSummary:
		p.mutate(ev.SessionID, func(acc profile.StableProfile) profile.StableProfile {
			return profile.Merge(acc, profile.Signals{RecentFocus: ev.Summary.Content})
		})
		p.flush(ev.SessionID)

	case eventbus.EventSessionEnd:
		p.flush(ev.SessionID)
		p.mu.Lock()
		delete(p.pending, ev.SessionID)
		p.mu.Unlock()
	}
}

func (p *Profile) mutate(sessionID string, f func(profile.StableProfile) profile.StableProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[sessionID] = f(p.pending[sessionID])
}

// flush merges the session's accumulated signals into the on-disk document
// and saves it. Best-effort: a read or write failure here is swallowed, as
// the profile is advisory context, never a source of truth.
func (p *Profile) flush(sessionID string) {
	p.mu.Lock()
	acc := p.pending[sessionID]
	p.mu.Unlock()

	doc, err := profile.Load(p.path)
	if err != nil {
		return
	}
	doc.Version = profile.CurrentVersion
	doc.StableProfile = profile.Merge(doc.StableProfile, toSignals(acc))
	doc.UpdatedAt = time.Now()
	_ = profile.Save(p.path, doc)
}

func toSignals(sp profile.StableProfile) profile.Signals {
	return profile.Signals{
		PreferredLanguage: sp.PreferredLanguage,
		CodingLanguages:   sp.CodingLanguages,
		Environment:       sp.Environment,
		Preferences:       sp.Preferences,
		RecentFocus:       sp.RecentFocus,
		LastWorkspace:     sp.LastWorkspace,
	}
}
