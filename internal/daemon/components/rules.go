package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/daemon"
	"github.com/harunnryd/mezame/internal/host"
	"github.com/harunnryd/mezame/internal/rules"
)

// RulesComponent owns the deny/allow rules engine. Static config lists seed
// the host store on first run; afterwards the store is authoritative so rule
// edits from the CLI survive restarts.
type RulesComponent struct {
	cfg       *config.Config
	stateComp *StateComponent
	engine    *rules.Engine
}

func NewRulesComponent(cfg *config.Config, stateComp *StateComponent) *RulesComponent {
	return &RulesComponent{cfg: cfg, stateComp: stateComp}
}

func (r *RulesComponent) Name() string {
	return "Rules"
}

func (r *RulesComponent) Dependencies() []string {
	return []string{"State"}
}

func (r *RulesComponent) Init(ctx context.Context) error {
	if r.stateComp == nil {
		return fmt.Errorf("stateComp not provided")
	}
	store := r.stateComp.ConfigStore()
	if store == nil {
		return fmt.Errorf("config store not initialized")
	}

	if len(store.GetStringSlice(host.KeyDenyList)) == 0 && len(r.cfg.Approval.DenyList) > 0 {
		if err := store.Set(host.KeyDenyList, r.cfg.Approval.DenyList, host.ScopeGlobal); err != nil {
			return fmt.Errorf("seed deny list: %w", err)
		}
	}
	if len(store.GetStringSlice(host.KeyAllowList)) == 0 && len(r.cfg.Approval.AllowList) > 0 {
		if err := store.Set(host.KeyAllowList, r.cfg.Approval.AllowList, host.ScopeGlobal); err != nil {
			return fmt.Errorf("seed allow list: %w", err)
		}
	}

	r.engine = rules.NewEngine(store)
	slog.Info("Rules engine initialized", "component", r.Name(), "deny_rules", len(r.engine.DenyList()), "allow_rules", len(r.engine.AllowList()))
	return nil
}

func (r *RulesComponent) Start(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("rules engine not initialized")
	}
	return nil
}

func (r *RulesComponent) Stop(ctx context.Context) error {
	return nil
}

func (r *RulesComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if r.engine == nil {
		return &daemon.ComponentHealth{
			Name:    r.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	return &daemon.ComponentHealth{Name: r.Name(), Healthy: true}, nil
}

func (r *RulesComponent) GetEngine() *rules.Engine {
	return r.engine
}
