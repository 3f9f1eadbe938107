package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/myclaw/internal/config"
	"github.com/nextlevelbuilder/myclaw/internal/persistence"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

func chatCmd() *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session against the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(resume)
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", `resume a prior session by id, 1-based index, or "latest"`)
	return cmd
}

func runChat(resume string) error {
	cfg, err := config.Load(workspaceFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	term := newTerminal()
	rt, err := newRuntime(cfg, func(ctx context.Context, command string) bool {
		return term.confirmAction("Run shell command: " + command + "?")
	})
	if err != nil {
		return err
	}
	defer rt.flush()

	sess, err := resolveSession(rt, resume)
	if err != nil {
		return err
	}
	defer rt.closeSession(sess)

	term.printBanner(cfg.Provider, cfg.Model, cfg.Workspace)

	// Ctrl+C cancels the turn currently in flight; a second Ctrl+C within
	// two seconds of the first, with no turn running, exits the REPL.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var mu sync.Mutex
	var runCancel context.CancelFunc
	var lastInterrupt time.Time

	go func() {
		for range sigCh {
			mu.Lock()
			cancel := runCancel
			now := time.Now()
			doubleTap := now.Sub(lastInterrupt) < 2*time.Second
			lastInterrupt = now
			mu.Unlock()

			switch {
			case cancel != nil:
				cancel()
			case doubleTap:
				fmt.Println("\nExiting.")
				os.Exit(0)
			default:
				fmt.Println()
				term.printPrompt()
			}
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	for {
		term.printPrompt()
		line, err := readInput(reader)
		if err != nil {
			fmt.Println()
			return nil
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := handleSlashCommand(term, rt, &sess, line); done {
				return nil
			}
			continue
		}

		runCtx, cancel := context.WithCancel(context.Background())
		mu.Lock()
		runCancel = cancel
		mu.Unlock()

		sess.Lock()
		reply := rt.engine.RunTurn(runCtx, sess, line)
		sess.Unlock()

		mu.Lock()
		runCancel = nil
		mu.Unlock()
		cancel()

		if runCtx.Err() != nil {
			fmt.Println("Operation cancelled.")
			continue
		}
		term.printAssistant(reply)
	}
}

// readInput reads one line, then keeps consuming already-buffered lines
// (a pasted multi-line block lands in the reader's buffer faster than the
// user can press Enter between lines) so a paste is treated as one input.
func readInput(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	lines := []string{strings.TrimRight(line, "\r\n")}

	for reader.Buffered() > 0 || stdinHasData() {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// handleSlashCommand dispatches one of the chat slash-commands. It
// reports true when the chat loop should exit. sess is a pointer so
// /use can swap the active session in place.
func handleSlashCommand(term *terminal, rt *runtime, sess **session.Session, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/help":
		term.printHelp()
	case "/exit", "/quit":
		return true
	case "/clear":
		(*sess).Messages = (*sess).Messages[:1]
		fmt.Println("conversation history cleared")
	case "/history":
		n := 10
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		term.printMessageHistory((*sess).NonSystemMessages(), n)
	case "/config":
		printConfig(rt.cfg)
	case "/session":
		fmt.Printf("session: %s\nworkspace: %s\n\n", (*sess).ID, (*sess).Workspace)
	case "/summary":
		n := 3
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		printSummaries((*sess).Summaries, n)
	case "/sessions":
		n := 10
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		printSessions(term, rt, n)
	case "/use":
		if len(args) == 0 {
			term.printWarning("usage: /use <id|index|latest>")
			return false
		}
		switchSession(term, rt, sess, args[0])
	default:
		term.printWarning("unknown command " + cmd + ", try /help")
	}
	return false
}

func printConfig(cfg config.Config) {
	fmt.Printf("provider:           %s\n", cfg.Provider)
	fmt.Printf("model:              %s\n", cfg.Model)
	fmt.Printf("baseURL:            %s\n", cfg.BaseURL)
	fmt.Printf("workspace:          %s\n", cfg.Workspace)
	fmt.Printf("homeDir:            %s\n", cfg.HomeDir)
	fmt.Printf("maxSteps:           %d\n", cfg.Runtime.MaxSteps)
	fmt.Printf("contextWindowSize:  %d\n", cfg.Runtime.ContextWindowSize)
	fmt.Printf("eslintEnabled:      %v\n", cfg.ESLintEnabled())
	fmt.Printf("reviewEnabled:      %v\n\n", cfg.ReviewEnabled())
}

func printSummaries(summaries []session.SummaryBlock, n int) {
	if n <= 0 || n > len(summaries) {
		n = len(summaries)
	}
	tail := summaries[len(summaries)-n:]
	for _, b := range tail {
		fmt.Printf("[%d-%d] %s\n", b.From, b.To, truncate(b.Content, 200))
	}
	fmt.Println()
}

func printSessions(term *terminal, rt *runtime, n int) {
	summaries, err := persistence.ListForWorkspace(rt.cfg.HomeDir, rt.cfg.Workspace)
	if err != nil {
		term.printError(err)
		return
	}
	if n <= 0 || n > len(summaries) {
		n = len(summaries)
	}
	for i, s := range summaries[:n] {
		fmt.Printf("  %d. %s  started %s  updated %s\n", i+1, s.ID, s.StartedAt.Format("2006-01-02 15:04"), s.LastUpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func switchSession(term *terminal, rt *runtime, sess **session.Session, specifier string) {
	summaries, err := persistence.ListForWorkspace(rt.cfg.HomeDir, rt.cfg.Workspace)
	if err != nil {
		term.printError(err)
		return
	}
	picked, err := persistence.PickSession(summaries, specifier)
	if err != nil {
		term.printError(err)
		return
	}
	next, err := rt.resumeSession(picked.ID)
	if err != nil {
		term.printError(err)
		return
	}
	rt.closeSession(*sess)
	*sess = next
	fmt.Printf("switched to session %s\n\n", next.ID)
}
