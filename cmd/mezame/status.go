package main

import (
	"fmt"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/host"
	"github.com/harunnryd/mezame/internal/render"
	"github.com/harunnryd/mezame/internal/schedule"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show approval state, schedule, and weekly impact",
	RunE: func(cmd *cobra.Command, args []string) error {
		configStore, _, err := statePair()
		if err != nil {
			return err
		}

		enabled := configStore.GetBool(host.KeyApprovalEnabled)
		strategy := cfg.Approval.Strategy
		if strategy == "" {
			strategy = config.DefaultApprovalStrategy
		}

		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Printf("Auto-approval: %s (strategy %s, every %s)\n", state, strategy, cfg.Approval.PollInterval)
		fmt.Printf("Wake schedule: %s", schedule.DescribeConfig(cfg.Schedule))
		if !cfg.Schedule.Enabled {
			fmt.Print(" (off)")
		}
		fmt.Println()

		if next, ok := schedule.NextTrigger(cfg.Schedule, time.Now()); ok && cfg.Schedule.Enabled {
			fmt.Printf("Next wake-up: %s\n", formatIn(next))
		}

		impact, err := history.NewImpact(cfg.History.BasePath, cfg.History.ActivityCap)
		if err != nil {
			return err
		}
		f := render.NewFormatter()
		fmt.Println(f.FormatStats(impact.Stats()))

		ledger, err := wakeLedger()
		if err != nil {
			return err
		}
		if last, ok := ledger.Latest(); ok {
			result := "succeeded"
			if !last.Success {
				result = "failed"
			}
			fmt.Printf("Last wake-up %s at %s (%s)\n", result, last.Timestamp.Format("2006-01-02 15:04"), last.TriggerType)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
