package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/config"
	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/persistence"
	"github.com/nextlevelbuilder/myclaw/internal/provider"
	"github.com/nextlevelbuilder/myclaw/internal/session"
	"github.com/nextlevelbuilder/myclaw/internal/subscriber"
	"github.com/nextlevelbuilder/myclaw/internal/tools"
	"github.com/nextlevelbuilder/myclaw/internal/turn"
	"github.com/nextlevelbuilder/myclaw/internal/workspace"
)

// runtime bundles every long-lived component one CLI invocation wires
// together: the session store, event bus, its four subscribers, the tool
// catalog, and the turn engine.
type runtime struct {
	cfg          config.Config
	store        *session.Store
	bus          *eventbus.Bus
	engine       *turn.Engine
	sessionLog   *subscriber.SessionLog
	metrics      *subscriber.Metrics
	profileSub   *subscriber.Profile
	asyncCheck   *subscriber.AsyncCheck
	systemPrompt string
}

// newRuntime constructs every component for cfg, approving destructive
// shell commands through approve (nil denies them all, matching
// tools.NewCatalog's contract).
func newRuntime(cfg config.Config, approve tools.ApprovalCallback) (*runtime, error) {
	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	bus := eventbus.New()
	store := session.NewStore()
	catalog := tools.NewCatalog(ws, approve)
	prov := newProvider(cfg)
	engine := turn.NewEngine(bus, catalog, prov)

	sessionLog := subscriber.NewSessionLog()
	sessionLog.Register(bus)

	metrics := subscriber.NewMetrics(persistence.MetricsDir(cfg.HomeDir))
	metrics.Register(bus)

	profileSub := subscriber.NewProfile(profilePath(cfg.HomeDir))
	profileSub.Register(bus)

	asyncCheck := subscriber.NewAsyncCheck(store, cfg.ESLintEnabled())
	asyncCheck.Register(bus)

	return &runtime{
		cfg:          cfg,
		store:        store,
		bus:          bus,
		engine:       engine,
		sessionLog:   sessionLog,
		metrics:      metrics,
		profileSub:   profileSub,
		asyncCheck:   asyncCheck,
		systemPrompt: systemPrompt(cfg),
	}, nil
}

func profilePath(homeDir string) string {
	return homeDir + "/user-profile.json"
}

// newProvider resolves a Provider from cfg.Provider: "mock" for offline
// use and tests, "openai"/"anthropic" both served by the OpenAI-compatible
// HTTP client pointed at their respective base URLs and API keys (see
// DESIGN.md's Anthropic-wire-format Open Question resolution).
func newProvider(cfg config.Config) provider.Provider {
	switch cfg.Provider {
	case "openai":
		return provider.NewOpenAICompat(apiKeyForProvider("openai"), cfg.Model, cfg.BaseURL,
			time.Duration(cfg.Runtime.ModelTimeoutMs)*time.Millisecond, cfg.Runtime.ModelRetryCount)
	case "anthropic":
		return provider.NewOpenAICompat(apiKeyForProvider("anthropic"), cfg.Model, cfg.BaseURL,
			time.Duration(cfg.Runtime.ModelTimeoutMs)*time.Millisecond, cfg.Runtime.ModelRetryCount)
	default:
		return provider.NewMock()
	}
}

// apiKeyForProvider reads the provider-specific API key from the
// environment, grounded in the teacher's config.APIKeyForProvider.
func apiKeyForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func systemPrompt(cfg config.Config) string {
	return "You are myclaw, an autonomous coding agent working in the workspace at " + cfg.Workspace + ".\n" +
		"Use the available tools to read, write, and search files, and to run shell commands, in service of the user's request.\n" +
		"Prefer the smallest change that satisfies the request. Always read a file before writing to an existing path."
}

// sessionRuntime converts the config-level runtime tunables into the
// session package's narrower Runtime shape.
func sessionRuntime(cfg config.Config) session.Runtime {
	return session.Runtime{MaxSteps: cfg.Runtime.MaxSteps, ContextWindowSize: cfg.Runtime.ContextWindowSize}
}

// flush drains every subscriber's pending writes; callers must invoke
// this before the process exits (spec.md §5's "a terminated CLI process
// must flush() all subscribers before exiting").
func (r *runtime) flush() {
	r.sessionLog.Flush()
	r.metrics.Flush()
}

// newSession creates and registers a fresh session, publishing the start
// event.
func (r *runtime) newSession() *session.Session {
	sess := session.New("", r.cfg.Workspace, "", sessionRuntime(r.cfg), r.systemPrompt)
	sess.LogPath = persistence.LogPath(r.cfg.HomeDir, sess.ID)
	if err := r.store.Create(sess); err != nil {
		panic(err)
	}
	r.engine.CreateSession(sess)
	return sess
}

// resumeSession loads a persisted session back into the store.
func (r *runtime) resumeSession(sessionID string) (*session.Session, error) {
	sess, err := persistence.Resume(r.cfg.HomeDir, sessionID, sessionRuntime(r.cfg), r.systemPrompt)
	if err != nil {
		return nil, err
	}
	sess.LogPath = persistence.LogPath(r.cfg.HomeDir, sess.ID)
	r.store.Restore(sess)
	r.engine.ResumeSession(sess, sessionID)
	return sess, nil
}

// closeSession publishes session_end and removes the session from the
// store.
func (r *runtime) closeSession(sess *session.Session) {
	r.engine.CloseSession(sess)
	r.store.Delete(sess.ID)
}
