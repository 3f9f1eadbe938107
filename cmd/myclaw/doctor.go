package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/myclaw/internal/config"
	"github.com/nextlevelbuilder/myclaw/internal/persistence"
	"github.com/nextlevelbuilder/myclaw/internal/subscriber"
)

func newMetricsForDoctor(cfg config.Config) *subscriber.Metrics {
	return subscriber.NewMetrics(persistence.MetricsDir(cfg.HomeDir))
}

func doctorCmd() *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(showMetrics)
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "also print the metrics registry in Prometheus text format (fresh zero-value counters; recorded metrics are not read)")
	return cmd
}

func runDoctor(showMetrics bool) {
	fmt.Println("myclaw doctor")
	fmt.Printf("  Version: %s\n", version)
	fmt.Printf("  OS:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:      %s\n", runtime.Version())
	fmt.Println()

	homeDir, err := persistence.HomeDir()
	fmt.Printf("  Home:    %s", homeDir)
	if err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
		return
	}
	if _, statErr := os.Stat(homeDir); statErr != nil {
		fmt.Println(" (NOT FOUND — run `myclaw init`)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(workspaceFlag)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	fmt.Printf("  Config:  provider=%s model=%s maxSteps=%d\n", cfg.Provider, cfg.Model, cfg.Runtime.MaxSteps)

	sessions, err := persistence.ListForWorkspace(cfg.HomeDir, cfg.Workspace)
	if err != nil {
		fmt.Printf("  Sessions: error listing (%s)\n", err)
	} else {
		fmt.Printf("  Sessions: %d persisted for this workspace\n", len(sessions))
	}

	if !showMetrics {
		return
	}
	fmt.Println()
	fmt.Println("  Metrics:")
	printMetricsSnapshot(cfg)
}

// printMetricsSnapshot builds a throwaway Metrics subscriber (registering
// it is unnecessary since we only want its registry's initial zero-value
// counters, which is enough to show doctor --metrics is wired up without
// needing a live bus) and renders its registry in Prometheus text format.
func printMetricsSnapshot(cfg config.Config) {
	m := newMetricsForDoctor(cfg)
	families, err := m.Registry().Gather()
	if err != nil {
		fmt.Printf("    error gathering metrics: %s\n", err)
		return
	}
	enc := expfmt.NewEncoder(os.Stdout, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			fmt.Printf("    error encoding metrics: %s\n", err)
			return
		}
	}
}
