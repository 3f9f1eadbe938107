package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=v1.0.0".
var version = "dev"

var workspaceFlag string

var rootCmd = &cobra.Command{
	Use:   "myclaw",
	Short: "myclaw — autonomous coding agent runtime",
	Long:  "myclaw drives a model through a sandboxed file and shell tool catalog to complete coding tasks, one workspace-scoped session at a time.",
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", wd, "workspace root directory")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(initCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("myclaw %s\n", version)
		},
	}
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
