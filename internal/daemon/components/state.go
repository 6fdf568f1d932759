package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/daemon"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/host"
)

// StateComponent owns the persistent stores every other component reads:
// host config/secret stores and the history ledgers.
type StateComponent struct {
	cfg *config.Config

	configStore *host.FileConfigStore
	secretStore *host.FileSecretStore
	operations  *history.OperationLog
	impact      *history.Impact
	wakeLedger  *history.WakeLedger
}

func NewStateComponent(cfg *config.Config) *StateComponent {
	return &StateComponent{cfg: cfg}
}

func (s *StateComponent) Name() string {
	return "State"
}

func (s *StateComponent) Dependencies() []string {
	return nil
}

func (s *StateComponent) Init(ctx context.Context) error {
	configStore, err := host.NewFileConfigStore(s.cfg.Host.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}
	s.configStore = configStore

	secretStore, err := host.NewFileSecretStore(s.cfg.Host.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open secret store: %w", err)
	}
	s.secretStore = secretStore

	operations, err := history.NewOperationLog(s.cfg.History.BasePath, s.cfg.History.OperationCap)
	if err != nil {
		return fmt.Errorf("failed to open operation log: %w", err)
	}
	s.operations = operations

	impact, err := history.NewImpact(s.cfg.History.BasePath, s.cfg.History.ActivityCap)
	if err != nil {
		return fmt.Errorf("failed to open impact tracker: %w", err)
	}
	s.impact = impact

	wakeMaxAge, err := config.DurationOrDefault(s.cfg.History.WakeMaxAge, config.DefaultHistoryWakeMaxAge)
	if err != nil {
		return fmt.Errorf("parse wake history max age: %w", err)
	}
	wakeLedger, err := history.NewWakeLedger(s.cfg.History.BasePath, s.cfg.History.WakeCap, wakeMaxAge)
	if err != nil {
		return fmt.Errorf("failed to open wake ledger: %w", err)
	}
	s.wakeLedger = wakeLedger

	slog.Info("State stores opened", "component", s.Name(), "state_path", s.cfg.Host.StatePath, "history_path", s.cfg.History.BasePath)
	return nil
}

func (s *StateComponent) Start(ctx context.Context) error {
	return nil
}

func (s *StateComponent) Stop(ctx context.Context) error {
	return nil
}

func (s *StateComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if s.configStore == nil {
		return &daemon.ComponentHealth{
			Name:    s.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *StateComponent) ConfigStore() *host.FileConfigStore { return s.configStore }
func (s *StateComponent) SecretStore() *host.FileSecretStore { return s.secretStore }
func (s *StateComponent) Operations() *history.OperationLog { return s.operations }
func (s *StateComponent) Impact() *history.Impact { return s.impact }
func (s *StateComponent) WakeLedger() *history.WakeLedger { return s.wakeLedger }
