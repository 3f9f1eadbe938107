package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nextlevelbuilder/myclaw/internal/session"
)

// ANSI color codes, kept in the same small palette the teacher's ui
// package uses.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	gray   = "\033[90m"
	white  = "\033[97m"
)

// terminal handles all user-facing chat output and prompts.
type terminal struct {
	color bool
}

func newTerminal() *terminal {
	return &terminal{color: isTerminalStdout()}
}

func isTerminalStdout() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (t *terminal) c(code, text string) string {
	if !t.color {
		return text
	}
	return code + text + reset
}

func (t *terminal) printBanner(provider, model, workspace string) {
	fmt.Println(t.c(bold+cyan, "myclaw"))
	fmt.Println(t.c(gray, "  Provider: ") + t.c(cyan, provider))
	fmt.Println(t.c(gray, "  Model:    ") + t.c(cyan, model))
	fmt.Println(t.c(gray, "  Workspace:") + " " + t.c(white, workspace))
	fmt.Println()
	fmt.Println(t.c(gray, "  Type ") + t.c(cyan, "/help") + t.c(gray, " for commands"))
	fmt.Println()
}

func (t *terminal) prompt() string {
	return t.c(bold+blue, "> ")
}

func (t *terminal) printPrompt() {
	fmt.Print(t.prompt())
}

func (t *terminal) printAssistant(text string) {
	fmt.Println(text)
	fmt.Println()
}

func (t *terminal) printError(err error) {
	fmt.Fprintln(os.Stderr, t.c(red, "Error: "+err.Error()))
}

func (t *terminal) printWarning(msg string) {
	fmt.Println(t.c(yellow, "Warning: "+msg))
}

func (t *terminal) printHint(msg string) {
	fmt.Println(t.c(dim, msg))
}

func (t *terminal) printHelp() {
	fmt.Println(t.c(bold, "Commands"))
	for _, line := range [][2]string{
		{"/help", "Show this help message"},
		{"/exit, /quit", "Exit the chat"},
		{"/clear", "Clear the conversation history"},
		{"/history [n]", "Show the last n messages (default 10)"},
		{"/config", "Show the effective configuration"},
		{"/session", "Show the current session id and workspace"},
		{"/summary [n]", "Show the last n summary blocks (default 3)"},
		{"/sessions [n]", "List up to n persisted sessions for this workspace"},
		{"/use <id|index|latest>", "Switch to another persisted session"},
	} {
		fmt.Printf("  %s %s\n", t.c(cyan, fmt.Sprintf("%-22s", line[0])), line[1])
	}
	fmt.Println()
}

// confirmAction asks the user for y/n confirmation, used as the turn
// engine's destructive-shell-command approval callback.
func (t *terminal) confirmAction(prompt string) bool {
	fmt.Print(t.c(bold+yellow, prompt+" [y/n] "))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func (t *terminal) printMessageHistory(messages []session.Message, n int) {
	if n <= 0 || n > len(messages) {
		n = len(messages)
	}
	tail := messages[len(messages)-n:]
	for _, m := range tail {
		switch m.Role {
		case session.RoleUser:
			fmt.Println(t.c(bold+blue, "you: ") + m.Content)
		case session.RoleAssistant:
			if m.Content != "" {
				fmt.Println(t.c(bold+green, "agent: ") + m.Content)
			}
		case session.RoleTool:
			fmt.Println(t.c(gray, "  [tool "+m.ToolName+"] "+truncate(m.Content, 160)))
		}
	}
	fmt.Println()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
