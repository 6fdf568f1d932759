package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		// secrets never hit stdout
		redacted := *cfg
		if redacted.Wake.OpenAIAPIKey != "" {
			redacted.Wake.OpenAIAPIKey = "<set>"
		}
		if redacted.Wake.GeminiAPIKey != "" {
			redacted.Wake.GeminiAPIKey = "<set>"
		}
		if redacted.Wake.AnthropicAPIKey != "" {
			redacted.Wake.AnthropicAPIKey = "<set>"
		}
		if redacted.Auth.ClientSecret != "" {
			redacted.Auth.ClientSecret = "<set>"
		}
		if redacted.Notify.Slack.BotToken != "" {
			redacted.Notify.Slack.BotToken = "<set>"
		}
		if redacted.Notify.Telegram.BotToken != "" {
			redacted.Notify.Telegram.BotToken = "<set>"
		}

		out, err := yaml.Marshal(redacted)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
