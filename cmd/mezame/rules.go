package main

import (
	"fmt"

	"github.com/harunnryd/mezame/internal/render"
	"github.com/harunnryd/mezame/internal/rules"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the deny/allow pattern lists",
	Long:  `View and edit the pattern lists the approval engine checks. Deny patterns always win over allow patterns; the built-in safety list cannot be edited.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}

		showBuiltin, _ := cmd.Flags().GetBool("builtin")
		if showBuiltin {
			fmt.Println("Built-in safety rules (not editable):")
			for _, p := range rules.HardcodedDenyList() {
				fmt.Printf("  %s\n", p)
			}
			fmt.Println()
		}

		fmt.Println(render.NewFormatter().FormatRules(engine.DenyList(), engine.AllowList()))
		return nil
	},
}

var rulesAddDenyCmd = &cobra.Command{
	Use:   "add-deny <pattern>",
	Short: "Add a deny pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		if err := engine.AddDenyRule(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deny rule added: %s\n", args[0])
		return nil
	},
}

var rulesAddAllowCmd = &cobra.Command{
	Use:   "add-allow <pattern>",
	Short: "Add an allow pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		if err := engine.AddAllowRule(args[0]); err != nil {
			return err
		}
		fmt.Printf("Allow rule added: %s\n", args[0])
		return nil
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove <pattern>",
	Short: "Remove a pattern from either list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		if err := engine.RemoveRule(args[0]); err != nil {
			return err
		}
		fmt.Printf("Rule removed: %s\n", args[0])
		return nil
	},
}

var rulesTestCmd = &cobra.Command{
	Use:   "test <command>",
	Short: "Dry-run a terminal command against the current rules",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}

		command := args[0]
		for _, extra := range args[1:] {
			command += " " + extra
		}

		result := engine.Evaluate(rules.Operation{Kind: rules.KindTerminal, Content: command})
		f := render.NewFormatter()
		fmt.Println(f.Verdict(result.Approved, result.Reason))
		if result.Rule != "" {
			fmt.Printf("matched rule: %s\n", result.Rule)
		}
		return nil
	},
}

func openEngine() (*rules.Engine, error) {
	configStore, _, err := statePair()
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(configStore), nil
}

func init() {
	rulesListCmd.Flags().Bool("builtin", false, "include the built-in safety rules")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddDenyCmd)
	rulesCmd.AddCommand(rulesAddAllowCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rulesCmd.AddCommand(rulesTestCmd)
	rootCmd.AddCommand(rulesCmd)
}
