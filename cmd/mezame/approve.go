package main

import (
	"fmt"

	"github.com/harunnryd/mezame/internal/host"

	"github.com/spf13/cobra"
)

// approveCmd flips the persisted enabled flag. A running daemon restores the
// flag on next start; the flag is shared state, not a live control channel.
var approveCmd = &cobra.Command{
	Use:       "approve [on|off|toggle]",
	Short:     "Switch auto-approval on or off",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		configStore, _, err := statePair()
		if err != nil {
			return err
		}

		current := configStore.GetBool(host.KeyApprovalEnabled)
		if len(args) == 0 {
			state := "off"
			if current {
				state = "on"
			}
			fmt.Printf("Auto-approval is %s\n", state)
			return nil
		}

		var next bool
		switch args[0] {
		case "on":
			next = true
		case "off":
			next = false
		case "toggle":
			next = !current
		default:
			return fmt.Errorf("expected on, off, or toggle")
		}

		if err := configStore.Set(host.KeyApprovalEnabled, next, host.ScopeGlobal); err != nil {
			return err
		}
		state := "off"
		if next {
			state = "on"
		}
		fmt.Printf("Auto-approval switched %s\n", state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
