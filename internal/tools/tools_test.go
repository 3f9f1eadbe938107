package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/myclaw/internal/session"
	"github.com/nextlevelbuilder/myclaw/internal/workspace"
)

func newTestCatalog(t *testing.T) (*Catalog, *workspace.Workspace, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewCatalog(ws, nil), ws, root
}

func newTestSession() *session.Session {
	return session.New("", "/ws", "", session.Runtime{}, "system")
}

func TestReadFileWithLineRangeReturnsNumberedSlice(t *testing.T) {
	cat, ws, _ := newTestCatalog(t)
	if err := ws.WriteText("a.txt", "one\ntwo\nthree\nfour\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := newTestSession()
	input, _ := json.Marshal(readFileInput{Path: "a.txt", StartLine: 2, EndLine: 3})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "read_file", Input: input})
	if !res.OK {
		t.Fatalf("unexpected failure: %v", res.Output)
	}
	if !strings.Contains(res.Output, "2\ttwo") || !strings.Contains(res.Output, "3\tthree") {
		t.Fatalf("expected cat-style numbered lines 2-3, got %q", res.Output)
	}
	if strings.Contains(res.Output, "\tone") || strings.Contains(res.Output, "\tfour") {
		t.Fatalf("expected lines outside the range to be excluded, got %q", res.Output)
	}
	if !strings.Contains(res.Output, "4 lines total") {
		t.Fatalf("expected the file's total line count to be reported, got %q", res.Output)
	}
}

func TestWriteFileRejectsUnreadExisting(t *testing.T) {
	cat, ws, _ := newTestCatalog(t)
	if err := ws.WriteText("a.txt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := newTestSession()
	input, _ := json.Marshal(writeFileInput{Path: "a.txt", Content: "bye"})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "write_file", Input: input})
	if res.OK {
		t.Fatal("expected rejection for writing an unread existing file")
	}
}

func TestWriteFileRejectsMissingWithoutAllowCreate(t *testing.T) {
	cat, _, _ := newTestCatalog(t)
	sess := newTestSession()
	input, _ := json.Marshal(writeFileInput{Path: "new.txt", Content: "hi"})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "write_file", Input: input})
	if res.OK {
		t.Fatal("expected rejection for creating without allowCreate")
	}
}

func TestWriteFileSucceedsAfterReadAndBumpsWorkspaceVersion(t *testing.T) {
	cat, ws, _ := newTestCatalog(t)
	if err := ws.WriteText("a.txt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := newTestSession()

	readInput, _ := json.Marshal(readFileInput{Path: "a.txt"})
	if res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "read_file", Input: readInput}); !res.OK {
		t.Fatalf("unexpected read failure: %v", res.Output)
	}

	before := sess.WorkspaceVersion
	writeInput, _ := json.Marshal(writeFileInput{Path: "a.txt", Content: "updated"})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "write_file", Input: writeInput})
	if !res.OK {
		t.Fatalf("expected write to succeed after read, got %v", res.Output)
	}
	if sess.WorkspaceVersion != before+1 {
		t.Fatalf("expected workspace version to bump, got %d -> %d", before, sess.WorkspaceVersion)
	}
}

func TestWriteFileAllowCreateSucceedsWithoutPriorRead(t *testing.T) {
	cat, _, _ := newTestCatalog(t)
	sess := newTestSession()
	input, _ := json.Marshal(writeFileInput{Path: "fresh.txt", Content: "hi", AllowCreate: true})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "write_file", Input: input})
	if !res.OK {
		t.Fatalf("expected create to succeed, got %v", res.Output)
	}
}

func TestWriteFileNormalizesBareCarriageReturns(t *testing.T) {
	cat, ws, _ := newTestCatalog(t)
	sess := newTestSession()
	input, _ := json.Marshal(writeFileInput{Path: "note.txt", Content: "line one\rline two\r\nline three", AllowCreate: true})
	if res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "write_file", Input: input}); !res.OK {
		t.Fatalf("unexpected failure: %v", res.Output)
	}
	got, err := ws.ReadText("note.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "line one\nline two\nline three" {
		t.Fatalf("expected normalized newlines, got %q", got)
	}
}

func TestApplyPatchRejectsUnreadFile(t *testing.T) {
	cat, ws, _ := newTestCatalog(t)
	if err := ws.WriteText("a.txt", "hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := newTestSession()
	input, _ := json.Marshal(applyPatchInput{Path: "a.txt", Search: "hello", Replace: "hi"})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "apply_patch", Input: input})
	if res.OK {
		t.Fatal("expected rejection for patching an unread file")
	}
}

func TestRunShellDeniesDestructiveCommandWithoutApproval(t *testing.T) {
	cat, _, _ := newTestCatalog(t)
	sess := newTestSession()
	input, _ := json.Marshal(runShellInput{Command: "rm -rf build"})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "run_shell", Input: input})
	if res.OK {
		t.Fatal("expected destructive command to be denied with no approval callback")
	}
	if !strings.Contains(res.Output, "destructive command blocked") {
		t.Fatalf("expected denial message to contain %q, got %q", "destructive command blocked", res.Output)
	}
}

func TestRunShellAllowsDestructiveCommandWhenApproved(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cat := NewCatalog(ws, func(ctx context.Context, command string) bool { return true })
	sess := newTestSession()
	input, _ := json.Marshal(runShellInput{Command: "rm -f scratch.txt"})
	res := cat.Execute(context.Background(), sess, session.ToolCall{Tool: "run_shell", Input: input})
	if !res.OK {
		t.Fatalf("expected approved destructive command to run, got %v", res.Output)
	}
}

func TestIsDestructiveMatchesKnownPatterns(t *testing.T) {
	cases := map[string]bool{
		"rm -rf /tmp/x":       true,
		"git reset --hard":    true,
		"git clean -fd":       true,
		"ls -la":              false,
		"echo hello":          false,
	}
	for cmd, want := range cases {
		if got := IsDestructive(cmd); got != want {
			t.Errorf("IsDestructive(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestListFilesFiltersByGlob(t *testing.T) {
	cat, ws, _ := newTestCatalog(t)
	if err := ws.WriteText("a.go", "package a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ws.WriteText("b.txt", "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	input, _ := json.Marshal(listFilesInput{Glob: "*.go"})
	res := cat.Execute(context.Background(), newTestSession(), session.ToolCall{Tool: "list_files", Input: input})
	if !res.OK {
		t.Fatalf("unexpected failure: %v", res.Output)
	}
	if res.Output == "" {
		t.Fatal("expected a.go to be listed")
	}
}
