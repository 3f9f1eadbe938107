package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/myclaw/internal/config"
	"github.com/nextlevelbuilder/myclaw/internal/persistence"
	"github.com/nextlevelbuilder/myclaw/internal/session"
)

func runCmd() *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run a single task to completion and print the final reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(strings.Join(args, " "), resume)
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", `resume a prior session by id, 1-based index, or "latest" instead of starting fresh`)
	return cmd
}

func runOnce(task, resume string) error {
	cfg, err := config.Load(workspaceFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.flush()

	sess, err := resolveSession(rt, resume)
	if err != nil {
		return err
	}
	defer rt.closeSession(sess)

	sess.Lock()
	defer sess.Unlock()

	reply := rt.engine.RunTurn(context.Background(), sess, task)
	fmt.Println(reply)
	return nil
}

// resolveSession starts a fresh session, or resumes one identified by
// specifier (id, 1-based index, or "latest") against this workspace's
// persisted sessions.
func resolveSession(rt *runtime, specifier string) (*session.Session, error) {
	if specifier == "" {
		return rt.newSession(), nil
	}

	summaries, err := persistence.ListForWorkspace(rt.cfg.HomeDir, rt.cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	picked, err := persistence.PickSession(summaries, specifier)
	if err != nil {
		return nil, err
	}
	sess, err := rt.resumeSession(picked.ID)
	if err != nil {
		return nil, fmt.Errorf("resume session %s: %w", picked.ID, err)
	}
	return sess, nil
}
