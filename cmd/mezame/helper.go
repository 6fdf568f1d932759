package main

import (
	"fmt"
	"time"

	"github.com/harunnryd/mezame/internal/auth"
	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/host"
	"github.com/harunnryd/mezame/internal/logger"
	"github.com/harunnryd/mezame/internal/quota"
	"github.com/harunnryd/mezame/internal/wake"
	"github.com/harunnryd/mezame/internal/wake/providers/cloudcode"
)

// statePair opens the on-disk host stores the daemon also writes to.
func statePair() (*host.FileConfigStore, *host.FileSecretStore, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config not loaded")
	}
	configStore, err := host.NewFileConfigStore(cfg.Host.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open config store: %w", err)
	}
	secretStore, err := host.NewFileSecretStore(cfg.Host.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open secret store: %w", err)
	}
	return configStore, secretStore, nil
}

func authManager() (*auth.Manager, error) {
	_, secrets, err := statePair()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(cfg.Auth, secrets), nil
}

func wakeLedger() (*history.WakeLedger, error) {
	maxAge, err := config.DurationOrDefault(cfg.History.WakeMaxAge, config.DefaultHistoryWakeMaxAge)
	if err != nil {
		return nil, fmt.Errorf("parse wake history max age: %w", err)
	}
	return history.NewWakeLedger(cfg.History.BasePath, cfg.History.WakeCap, maxAge)
}

// buildTrigger assembles the wake path for one-off CLI invocations. Notifiers
// are left out: an interactive run prints its own outcome.
func buildTrigger() (*wake.Trigger, *quota.Client, error) {
	manager, err := authManager()
	if err != nil {
		return nil, nil, err
	}
	client, err := quota.NewClient(cfg.Wake, manager)
	if err != nil {
		return nil, nil, err
	}

	fallback := cloudcode.New(client)
	ledger, err := wakeLedger()
	if err != nil {
		return nil, nil, err
	}

	trigger, err := wake.NewTrigger(cfg.Wake, client, fallback, ledger, logger.For("wake"))
	if err != nil {
		return nil, nil, err
	}
	return trigger, client, nil
}

func formatIn(at time.Time) string {
	return fmt.Sprintf("%s (in %s)", at.Format("Mon 2006-01-02 15:04"), time.Until(at).Round(time.Second))
}
