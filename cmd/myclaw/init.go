package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nextlevelbuilder/myclaw/internal/persistence"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold the myclaw home directory (memory, profile, sessions, metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	homeDir, err := persistence.HomeDir()
	if err != nil {
		return fmt.Errorf("resolve home dir: %w", err)
	}

	dirs := []string{homeDir, persistence.SessionsDir(homeDir), persistence.MetricsDir(homeDir)}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	memoryFile := filepath.Join(homeDir, "memory.md")
	if err := createIfAbsent(memoryFile, "# myclaw memory\n\nNotes the agent has chosen to remember across sessions.\n"); err != nil {
		return err
	}

	profileFile := filepath.Join(homeDir, "user-profile.json")
	if err := createIfAbsent(profileFile, "{}\n"); err != nil {
		return err
	}

	envFile := filepath.Join(homeDir, ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		if err := promptAndWriteAPIKey(envFile); err != nil {
			return err
		}
	}

	fmt.Printf("initialized %s\n", homeDir)
	return nil
}

func createIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// promptAndWriteAPIKey asks for an OpenAI API key (skipped if left blank)
// and writes it to <homeDir>/.env without echoing it to the terminal.
func promptAndWriteAPIKey(envFile string) error {
	key := promptPassword(bufio.NewReader(os.Stdin), "OpenAI API key (leave blank to skip)")
	if key == "" {
		return createIfAbsent(envFile, "")
	}
	return os.WriteFile(envFile, []byte("OPENAI_API_KEY="+key+"\n"), 0o600)
}

// promptPassword prompts for a value without echoing it when stdin is a
// real terminal, falling back to a plain line read otherwise.
func promptPassword(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		text, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(text))
		}
	}
	text, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
