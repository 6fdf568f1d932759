package approver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/host"
)

// Strategy is one way of performing an approval attempt on the host. A tick
// calls AttemptApprove once; the bool reports whether anything was actually
// approved. The absence of a pending step is the normal case and surfaces as
// (false, nil).
type Strategy interface {
	Name() string
	AttemptApprove(ctx context.Context) (bool, error)
}

const (
	StrategyPesosz = "pesosz"
	StrategyNative = "native"
	StrategyCDP    = "cdp"
)

// NewStrategy builds the strategy named by the approval policy.
func NewStrategy(cfg config.Config, invoker host.CommandInvoker, log *slog.Logger) (Strategy, error) {
	switch cfg.Approval.Strategy {
	case StrategyPesosz, "":
		return NewPesosz(cfg.Host, invoker), nil
	case StrategyNative:
		return NewNative(cfg.Host, invoker), nil
	case StrategyCDP:
		return NewCDP(cfg.Approval, log)
	default:
		return nil, fmt.Errorf("unknown approval strategy %q", cfg.Approval.Strategy)
	}
}
