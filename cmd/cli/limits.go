package cli

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// limitsCmd represents the limits command
var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show the resolved concurrency limit and engine settings",
	RunE:  runLimits,
}

func init() {
	rootCmd.AddCommand(limitsCmd)
}

func runLimits(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	b, err := resolveBoundary(cfg)
	if err != nil {
		return err
	}

	maxJobs := "none"
	if cfg.Engine.MaxJobs > 0 {
		maxJobs = strconv.Itoa(cfg.Engine.MaxJobs)
	}
	rate := "unlimited"
	if cfg.Engine.RateLimit.Enabled {
		rate = fmt.Sprintf("%d/s (burst %d)", cfg.Engine.RateLimit.RequestsPerSecond, cfg.Engine.RateLimit.BurstSize)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Setting", "Value")
	rows := [][]string{
		{"boundary", b.String()},
		{"fd margin", strconv.Itoa(cfg.Engine.FDMargin)},
		{"max jobs", maxJobs},
		{"spawn rate", rate},
		{"chunk size", strconv.Itoa(cfg.Engine.ChunkSize)},
		{"timeout", cfg.Engine.Timeout.String()},
		{"stash delay", cfg.Engine.StashDelay.String()},
		{"max retries", strconv.Itoa(cfg.Engine.MaxRetries)},
		{"probe method", cfg.Probe.Method},
	}
	for _, row := range rows {
		_ = table.Append(row)
	}
	return table.Render()
}
