package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/mezame/internal/approver"
	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/daemon"
	"github.com/harunnryd/mezame/internal/host"
	"github.com/harunnryd/mezame/internal/logger"
)

// ApproverComponent owns the auto-approval controller and its strategy.
type ApproverComponent struct {
	cfg        *config.Config
	stateComp  *StateComponent
	rulesComp  *RulesComponent
	invoker    host.CommandInvoker
	controller *approver.Controller
}

func NewApproverComponent(cfg *config.Config, stateComp *StateComponent, rulesComp *RulesComponent, invoker host.CommandInvoker) *ApproverComponent {
	return &ApproverComponent{
		cfg:       cfg,
		stateComp: stateComp,
		rulesComp: rulesComp,
		invoker:   invoker,
	}
}

func (a *ApproverComponent) Name() string {
	return "Approver"
}

func (a *ApproverComponent) Dependencies() []string {
	return []string{"State", "Rules"}
}

func (a *ApproverComponent) Init(ctx context.Context) error {
	if a.stateComp == nil || a.rulesComp == nil {
		return fmt.Errorf("state and rules components not provided")
	}
	engine := a.rulesComp.GetEngine()
	if engine == nil {
		return fmt.Errorf("rules engine not initialized")
	}

	log := logger.For("approver")
	strategy, err := approver.NewStrategy(*a.cfg, a.invoker, log)
	if err != nil {
		return fmt.Errorf("failed to build approval strategy: %w", err)
	}

	controller, err := approver.NewController(
		*a.cfg,
		a.stateComp.ConfigStore(),
		engine,
		a.stateComp.Operations(),
		a.stateComp.Impact(),
		strategy,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to build approval controller: %w", err)
	}
	a.controller = controller

	slog.Info("Approver initialized", "component", a.Name(), "strategy", strategy.Name())
	return nil
}

func (a *ApproverComponent) Start(ctx context.Context) error {
	if a.controller == nil {
		return fmt.Errorf("approver not initialized")
	}
	// enabled state is restored from the host store inside the controller;
	// nothing to force here
	return nil
}

func (a *ApproverComponent) Stop(ctx context.Context) error {
	if a.controller == nil {
		slog.Info("Approver not initialized, skipping stop", "component", a.Name())
		return nil
	}
	a.controller.Dispose()
	slog.Info("Approver stopped", "component", a.Name())
	return nil
}

func (a *ApproverComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if a.controller == nil {
		return &daemon.ComponentHealth{
			Name:    a.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	return &daemon.ComponentHealth{Name: a.Name(), Healthy: true}, nil
}

func (a *ApproverComponent) GetController() *approver.Controller {
	return a.controller
}
