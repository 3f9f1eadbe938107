// Package tools implements the fixed six-tool catalog the model drives —
// read_file, write_file, apply_patch, list_files, search_workspace,
// run_shell — wiring internal/workspace's sandboxed I/O to the safety
// rails named in the turn engine's contract (read-before-write,
// create-guard, destructive-shell approval). Every tool execution is
// wrapped so a panic surfaces as an ordinary {ok:false} result instead of
// crashing the turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nextlevelbuilder/myclaw/internal/provider"
	"github.com/nextlevelbuilder/myclaw/internal/session"
	"github.com/nextlevelbuilder/myclaw/internal/workspace"
)

// ApprovalCallback asks a human whether a sensitive shell command should
// run. A nil callback is treated as an implicit deny.
type ApprovalCallback func(ctx context.Context, command string) bool

// defaultShellTimeout bounds a run_shell call with no explicit timeoutMs.
const defaultShellTimeout = 30 * time.Second

// Catalog dispatches the six model-facing tools against one Workspace.
type Catalog struct {
	ws      *workspace.Workspace
	approve ApprovalCallback
}

// NewCatalog creates a Catalog. approve may be nil, in which case every
// destructive shell command is denied.
func NewCatalog(ws *workspace.Workspace, approve ApprovalCallback) *Catalog {
	return &Catalog{ws: ws, approve: approve}
}

// Result is the outcome of one tool execution.
type Result struct {
	OK     bool
	Output string
}

// Execute runs call against sess, enforcing the safety rails, and never
// panics out to the caller.
func (c *Catalog) Execute(ctx context.Context, sess *session.Session, call session.ToolCall) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{OK: false, Output: fmt.Sprintf("tool panicked: %v", r)}
		}
	}()

	switch call.Tool {
	case "read_file":
		return c.readFile(call.Input, sess)
	case "write_file":
		return c.writeFile(call.Input, sess)
	case "apply_patch":
		return c.applyPatch(call.Input, sess)
	case "list_files":
		return c.listFiles(call.Input)
	case "search_workspace":
		return c.searchWorkspace(call.Input)
	case "run_shell":
		return c.runShell(ctx, call.Input)
	default:
		return Result{OK: false, Output: fmt.Sprintf("unknown tool %q", call.Tool)}
	}
}

func fail(format string, args ...any) Result {
	return Result{OK: false, Output: fmt.Sprintf(format, args...)}
}

func ok(output string) Result {
	return Result{OK: true, Output: output}
}

type readFileInput struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

func (c *Catalog) readFile(raw json.RawMessage, sess *session.Session) Result {
	var in readFileInput
	if err := json.Unmarshal(raw, &in); err != nil || in.Path == "" {
		return fail("read_file: missing path")
	}
	canonical, err := c.ws.ResolvePath(in.Path)
	if err != nil {
		return fail("read_file: %v", err)
	}

	if in.StartLine > 0 || in.EndLine > 0 {
		lines, total, err := c.ws.ReadLines(in.Path, in.StartLine, in.EndLine)
		if err != nil {
			return fail("read_file: %v", err)
		}
		sess.MarkRead(canonical)
		return ok(catNumbered(lines, in.StartLine, total))
	}

	content, err := c.ws.ReadText(in.Path)
	if err != nil {
		return fail("read_file: %v", err)
	}
	sess.MarkRead(canonical)
	return ok(content)
}

// catNumbered renders lines in the teacher's "cat -n" convention, numbered
// from the range's 1-indexed start, with the file's total line count noted.
func catNumbered(lines []string, start, total int) string {
	if start <= 0 {
		start = 1
	}
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%6d\t%s\n", start+i, line)
	}
	fmt.Fprintf(&b, "(%d lines total)\n", total)
	return b.String()
}

type writeFileInput struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	AllowCreate bool   `json:"allowCreate"`
}

func (c *Catalog) writeFile(raw json.RawMessage, sess *session.Session) Result {
	var in writeFileInput
	if err := json.Unmarshal(raw, &in); err != nil || in.Path == "" {
		return fail("write_file: missing path")
	}

	canonical, err := c.ws.ResolvePath(in.Path)
	if err != nil {
		return fail("write_file: %v", err)
	}
	exists, err := c.ws.Exists(in.Path)
	if err != nil {
		return fail("write_file: %v", err)
	}
	if exists && !sess.HasRead(canonical) {
		return fail("write_file: %s must be read_file first", in.Path)
	}
	if !exists && !in.AllowCreate {
		return fail("write_file: %s does not exist (set allowCreate to create it)", in.Path)
	}

	if err := c.ws.WriteText(in.Path, normalizeContent(in.Content)); err != nil {
		return fail("write_file: %v", err)
	}
	sess.MarkRead(canonical)
	sess.BumpWorkspaceVersion()
	return ok(fmt.Sprintf("wrote %s", in.Path))
}

// normalizeContent folds carriage returns into newlines — a model
// occasionally emits a lone \r (no following \n) inside tool-call JSON,
// which decodes to a raw control character that corrupts terminal
// rendering of the file it lands in. \r\n pairs become plain \n and a lone
// \r becomes \n as well. Nothing is re-escaped: raw control characters or
// newlines inside string literals of the content are written as decoded.
func normalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return content
}

type applyPatchInput struct {
	Path        string `json:"path"`
	Search      string `json:"search"`
	Replace     string `json:"replace"`
	ReplaceAll  bool   `json:"replaceAll"`
}

func (c *Catalog) applyPatch(raw json.RawMessage, sess *session.Session) Result {
	var in applyPatchInput
	if err := json.Unmarshal(raw, &in); err != nil || in.Path == "" {
		return fail("apply_patch: missing path")
	}
	canonical, err := c.ws.ResolvePath(in.Path)
	if err != nil {
		return fail("apply_patch: %v", err)
	}
	exists, err := c.ws.Exists(in.Path)
	if err != nil {
		return fail("apply_patch: %v", err)
	}
	if !exists || !sess.HasRead(canonical) {
		return fail("apply_patch: %s is missing or unread", in.Path)
	}

	n, err := c.ws.ApplyPatch(in.Path, in.Search, in.Replace, in.ReplaceAll)
	if err != nil {
		return fail("apply_patch: %v", err)
	}
	sess.BumpWorkspaceVersion()
	return ok(fmt.Sprintf("replaced %d occurrence(s) in %s", n, in.Path))
}

type listFilesInput struct {
	Path string `json:"path"`
	Glob string `json:"glob"`
}

func (c *Catalog) listFiles(raw json.RawMessage) Result {
	var in listFilesInput
	_ = json.Unmarshal(raw, &in)

	entries, err := c.ws.ListDir(in.Path)
	if err != nil {
		return fail("list_files: %v", err)
	}

	var b strings.Builder
	for _, e := range entries {
		if in.Glob != "" {
			if matched, _ := filepath.Match(in.Glob, e.Name); !matched {
				continue
			}
		}
		b.WriteString(workspace.FormatDirEntry(e))
		b.WriteByte('\n')
	}
	return ok(strings.TrimRight(b.String(), "\n"))
}

type searchWorkspaceInput struct {
	Query string `json:"query"`
	Path  string `json:"path"`
}

func (c *Catalog) searchWorkspace(raw json.RawMessage) Result {
	var in searchWorkspaceInput
	if err := json.Unmarshal(raw, &in); err != nil || in.Query == "" {
		return fail("search_workspace: missing query")
	}
	hits, err := c.ws.Search(in.Query, in.Path)
	if err != nil {
		return fail("search_workspace: %v", err)
	}
	if len(hits) == 0 {
		return ok("no matches")
	}
	var b strings.Builder
	for _, h := range hits {
		b.WriteString(h.Path)
		if h.IsDir {
			b.WriteString("/")
		}
		b.WriteByte('\n')
	}
	return ok(strings.TrimRight(b.String(), "\n"))
}

type runShellInput struct {
	Command   string `json:"command"`
	Cwd       string `json:"cwd"`
	TimeoutMs int    `json:"timeoutMs"`
}

// destructivePatterns mirrors the turn engine's safety-rail contract: any
// command matching one of these requires explicit approval.
var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\b`),
	regexp.MustCompile(`\brmdir\b`),
	regexp.MustCompile(`\bunlink\b`),
	regexp.MustCompile(`\bdel\b`),
	regexp.MustCompile(`\brd\b`),
	regexp.MustCompile(`mv\s+.*/dev/null`),
	regexp.MustCompile(`git\s+reset\s+--hard`),
	regexp.MustCompile(`git\s+clean`),
}

// IsDestructive reports whether a shell command line matches one of the
// patterns that requires approval before running.
func IsDestructive(command string) bool {
	for _, p := range destructivePatterns {
		if p.MatchString(command) {
			return true
		}
	}
	return false
}

func (c *Catalog) runShell(ctx context.Context, raw json.RawMessage) Result {
	var in runShellInput
	if err := json.Unmarshal(raw, &in); err != nil || in.Command == "" {
		return fail("run_shell: missing command")
	}

	if IsDestructive(in.Command) {
		if c.approve == nil || !c.approve(ctx, in.Command) {
			return fail("run_shell: destructive command blocked: %q", in.Command)
		}
	}

	timeout := defaultShellTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	result, err := c.ws.RunShell(ctx, in.Command, in.Cwd, timeout)
	if err != nil {
		return fail("run_shell: %v", err)
	}
	return ok(result.Output)
}

// Definitions returns the tool schemas for the provider's tool-use
// parameter, in catalog order.
func (c *Catalog) Definitions() []provider.ToolDef {
	return []provider.ToolDef{
		{Name: "read_file", Description: "Read a text file from the workspace. Pass startLine/endLine to read a numbered slice instead of the whole file.", Parameters: schemaReadFile},
		{Name: "write_file", Description: "Write a text file in the workspace. Existing files must be read first; new files require allowCreate.", Parameters: schemaWriteFile},
		{Name: "apply_patch", Description: "Replace a search string with a replacement in an already-read file.", Parameters: schemaApplyPatch},
		{Name: "list_files", Description: "List the immediate contents of a workspace directory, optionally filtered by glob.", Parameters: schemaListFiles},
		{Name: "search_workspace", Description: "Case-insensitive substring search over file and directory names.", Parameters: schemaSearchWorkspace},
		{Name: "run_shell", Description: "Run a shell command inside the workspace. Destructive commands require approval.", Parameters: schemaRunShell},
	}
}
