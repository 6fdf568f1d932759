package main

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/render"
	"github.com/harunnryd/mezame/internal/schedule"

	"github.com/spf13/cobra"
)

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Trigger and inspect quota wake-ups",
}

var wakeNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Fire a wake-up immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		trigger, _, err := buildTrigger()
		if err != nil {
			return err
		}
		defer trigger.Dispose()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		rec, err := trigger.Fire(ctx, history.TriggerManual, "cli", cfg.Schedule)
		if err != nil {
			return fmt.Errorf("wake failed: %w", err)
		}

		fmt.Printf("Wake-up %s: %s in %s\n",
			map[bool]string{true: "succeeded", false: "failed"}[rec.Success],
			rec.Message,
			rec.Duration.Round(time.Millisecond))
		for _, m := range rec.Models {
			mark := "ok"
			if !m.Success {
				mark = "failed: " + m.Message
			}
			fmt.Printf("  %s: %s\n", m.Model, mark)
		}
		return nil
	},
}

var wakeNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next scheduled wake-up",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		fmt.Printf("Schedule: %s\n", schedule.DescribeConfig(cfg.Schedule))

		var snapshot []schedule.ModelQuota
		if cfg.Schedule.WakeOnReset {
			trigger, _, err := buildTrigger()
			if err != nil {
				return err
			}
			defer trigger.Dispose()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if snap, err := trigger.Quotas(ctx); err == nil {
				snapshot = snap
			} else {
				fmt.Printf("quota snapshot unavailable (%v), static schedule only\n", err)
			}
		}

		resetDelay, err := config.DurationOrDefault(cfg.Wake.ResetDelay, config.DefaultWakeResetDelay)
		if err != nil {
			return err
		}
		threshold := cfg.Wake.ExhaustionThreshold
		if threshold <= 0 {
			threshold = config.DefaultWakeExhaustionThreshold
		}

		next, ok := schedule.NextTriggerAdaptive(cfg.Schedule, now, snapshot, threshold, resetDelay)
		if !ok {
			fmt.Println("No upcoming trigger for the current schedule.")
			return nil
		}
		fmt.Printf("Next wake-up: %s\n", formatIn(next))
		return nil
	},
}

var wakeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent wake-up attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := wakeLedger()
		if err != nil {
			return err
		}
		fmt.Println(render.NewFormatter().FormatWakeRecords(ledger.Records()))
		return nil
	},
}

func init() {
	wakeCmd.AddCommand(wakeNowCmd)
	wakeCmd.AddCommand(wakeNextCmd)
	wakeCmd.AddCommand(wakeHistoryCmd)
	rootCmd.AddCommand(wakeCmd)
}
