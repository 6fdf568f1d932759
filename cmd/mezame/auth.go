package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	mezameErrors "github.com/harunnryd/mezame/internal/errors"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage cloud API credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize via the browser OAuth flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := authManager()
		if err != nil {
			return err
		}

		creds, err := manager.LoginInteractive(cmd.Context())
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Printf("Logged in; token valid until %s\n", creds.ExpiresAt.Format(time.RFC1123))
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential state",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := authManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		creds, err := manager.Get(ctx)
		if err != nil {
			if errors.Is(err, mezameErrors.ErrReauthRequired) {
				fmt.Println("Not logged in. Run: mezame auth login")
				return nil
			}
			return err
		}

		if manager.IsExpired(creds) {
			fmt.Println("Access token expired (will refresh on next use)")
		} else {
			fmt.Printf("Access token valid until %s\n", creds.ExpiresAt.Format(time.RFC1123))
		}
		if creds.ProjectID != "" {
			fmt.Printf("Project: %s\n", creds.ProjectID)
		}
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := authManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := manager.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Credentials cleared")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
