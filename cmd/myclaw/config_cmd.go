package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/myclaw/internal/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(workspaceFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			printConfig(cfg)
			return nil
		},
	}
}
