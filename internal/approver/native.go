package approver

import (
	"context"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/host"
)

// Native commits the host's inline suggestion through a single editor command.
type Native struct {
	invoker host.CommandInvoker
	command string
}

func NewNative(cfg config.HostConfig, invoker host.CommandInvoker) *Native {
	command := cfg.InlineCommitCmd
	if command == "" {
		command = config.DefaultHostInlineCommitCmd
	}
	return &Native{invoker: invoker, command: command}
}

func (n *Native) Name() string {
	return StrategyNative
}

func (n *Native) AttemptApprove(ctx context.Context) (bool, error) {
	if err := n.invoker.Invoke(ctx, n.command); err != nil {
		return false, nil
	}
	return true, nil
}
