package approver

import (
	"context"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/host"
)

// Pesosz fires the agent-step and terminal accept commands on every tick.
// Individual command failures are swallowed: a missing command and "nothing to
// approve" are indistinguishable without host cooperation, and neither may
// abort the loop.
type Pesosz struct {
	invoker  host.CommandInvoker
	commands []string
}

func NewPesosz(cfg config.HostConfig, invoker host.CommandInvoker) *Pesosz {
	agentCmd := cfg.AgentAcceptCmd
	if agentCmd == "" {
		agentCmd = config.DefaultHostAgentAcceptCmd
	}
	terminalCmd := cfg.TerminalAccept
	if terminalCmd == "" {
		terminalCmd = config.DefaultHostTerminalAcceptCmd
	}
	return &Pesosz{
		invoker:  invoker,
		commands: []string{agentCmd, terminalCmd},
	}
}

func (p *Pesosz) Name() string {
	return StrategyPesosz
}

func (p *Pesosz) AttemptApprove(ctx context.Context) (bool, error) {
	approved := false
	for _, cmd := range p.commands {
		if err := p.invoker.Invoke(ctx, cmd); err == nil {
			approved = true
		}
	}
	return approved, nil
}
