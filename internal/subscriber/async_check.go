package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// sessionLookup resolves a session id to its live Session, so AsyncCheck
// can enqueue an interrupt without the bus coupling it to *session.Store
// directly.
type sessionLookup interface {
	Get(id string) (*session.Session, bool)
}

// checkTimeout bounds a single syntax/lint invocation.
const checkTimeout = 15 * time.Second

// AsyncCheck is the soft-gate subscriber: on a successful write_file or
// apply_patch it shells out to a syntax or lint check against the real
// filesystem path (not the sandboxed workspace tool, since the check runs
// after the workspace write already landed) and, on failure, enqueues a
// LINT_FAIL interrupt so the next turn sees it as a synthesized tool
// message. A missing check binary degrades to a silent skip.
type AsyncCheck struct {
	sessions     sessionLookup
	eslintEnabled bool
}

// NewAsyncCheck creates an AsyncCheck gate. eslintEnabled mirrors
// runtime.checks.eslint.enabled from config.
func NewAsyncCheck(sessions sessionLookup, eslintEnabled bool) *AsyncCheck {
	return &AsyncCheck{sessions: sessions, eslintEnabled: eslintEnabled}
}

// Register subscribes the gate on bus.
func (a *AsyncCheck) Register(bus *eventbus.Bus) eventbus.Unsubscribe {
	return bus.Subscribe(a.handle)
}

type writeInput struct {
	Path string `json:"path"`
}

func (a *AsyncCheck) handle(ev eventbus.AgentEvent) {
	if ev.Type != eventbus.EventToolResult || !ev.ToolOK {
		return
	}
	if ev.ToolCall.Tool != "write_file" && ev.ToolCall.Tool != "apply_patch" {
		return
	}
	var in writeInput
	if err := json.Unmarshal(ev.ToolCall.Input, &in); err != nil || in.Path == "" {
		return
	}

	sess, ok := a.sessions.Get(ev.SessionID)
	if !ok {
		return
	}
	absPath := in.Path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(sess.Workspace, in.Path)
	}
	workspaceRoot := sess.Workspace

	go a.runChecks(sess, absPath, workspaceRoot)
}

func (a *AsyncCheck) runChecks(sess *session.Session, absPath, workspaceRoot string) {
	for _, chk := range selectChecks(absPath, a.eslintEnabled, hasESLintConfig(workspaceRoot)) {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		ok, output, skipped := runCheckCommand(ctx, chk.bin, chk.args)
		cancel()
		if skipped || ok {
			continue
		}
		resolve, _ := sess.Interrupts.Enqueue()
		resolve(lintFailMessage(absPath, chk.linter, output))
		return
	}
}

func lintFailMessage(path, linter, output string) session.Message {
	payload, _ := json.Marshal(struct {
		File   string `json:"file"`
		Linter string `json:"linter"`
		Output string `json:"output"`
	}{File: path, Linter: linter, Output: output})
	return session.NewToolResult("", "async_check", fmt.Sprintf("LINT_FAIL %s", payload))
}

type checkCommand struct {
	linter string
	bin    string
	args   []string
}

// selectChecks returns, in order, every check that applies to path. ESLint
// is appended only when enabled and a config file is present.
func selectChecks(path string, eslintEnabled, eslintConfigPresent bool) []checkCommand {
	ext := strings.ToLower(filepath.Ext(path))
	var checks []checkCommand

	switch ext {
	case ".js", ".mjs", ".cjs":
		checks = append(checks, checkCommand{linter: "node", bin: "node", args: []string{"--check", path}})
	case ".py":
		checks = append(checks, checkCommand{linter: "python3", bin: "python3", args: []string{"-m", "py_compile", path}})
	}

	switch ext {
	case ".ts", ".tsx", ".js", ".jsx":
		if eslintEnabled && eslintConfigPresent {
			checks = append(checks, checkCommand{linter: "eslint", bin: "eslint", args: []string{"--no-color", path}})
		}
	}

	return checks
}

var eslintConfigNames = []string{
	"eslint.config.js", "eslint.config.mjs", "eslint.config.cjs", "eslint.config.ts",
	".eslintrc", ".eslintrc.js", ".eslintrc.cjs", ".eslintrc.json", ".eslintrc.yml", ".eslintrc.yaml",
}

// hasESLintConfig reports whether root contains a flat or legacy ESLint
// config file.
func hasESLintConfig(root string) bool {
	for _, name := range eslintConfigNames {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return true
		}
	}
	return false
}

// runCheckCommand runs bin with args, reporting skipped=true when bin isn't
// on PATH rather than treating that as a failure.
func runCheckCommand(ctx context.Context, bin string, args []string) (ok bool, output string, skipped bool) {
	if _, err := exec.LookPath(bin); err != nil {
		return true, "", true
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	return err == nil, string(out), false
}
