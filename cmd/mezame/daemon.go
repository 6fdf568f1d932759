package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/mezame/internal/daemon"
	"github.com/harunnryd/mezame/internal/daemon/components"
	"github.com/harunnryd/mezame/internal/host"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	Aliases: []string{"run"},
	Short:   "Run the approval poller and wake scheduler as a long-lived service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		// no IDE bridge in standalone mode; accept commands are logged only
		invoker := host.LoggingInvoker{}

		daemonMgr := daemon.NewDaemon(cfg)

		stateComp := components.NewStateComponent(cfg)
		rulesComp := components.NewRulesComponent(cfg, stateComp)
		approverComp := components.NewApproverComponent(cfg, stateComp, rulesComp, invoker)
		wakeComp := components.NewWakeComponent(cfg, stateComp)

		daemonMgr.AddComponent(stateComp)
		daemonMgr.AddComponent(rulesComp)
		daemonMgr.AddComponent(approverComp)
		daemonMgr.AddComponent(wakeComp)

		if err := daemonMgr.Start(context.Background()); err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Info("Daemon stopped")
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
