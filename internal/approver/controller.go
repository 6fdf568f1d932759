package approver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	mezameErrors "github.com/harunnryd/mezame/internal/errors"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/host"
	"github.com/harunnryd/mezame/internal/rules"
)

// Controller owns the auto-approval loop: a repeating ticker that runs the
// configured strategy, plus the synchronous adjudication entry points the host
// event interceptors call. Enabled state is persisted so it survives restarts.
type Controller struct {
	store    host.ConfigStore
	engine   *rules.Engine
	ops      *history.OperationLog
	impact   *history.Impact
	strategy Strategy
	mapper   mezameErrors.Mapper
	log      *slog.Logger

	mu       sync.Mutex
	enabled  bool
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	disposed bool

	ticking int32
}

func NewController(cfg config.Config, store host.ConfigStore, engine *rules.Engine, ops *history.OperationLog, impact *history.Impact, strategy Strategy, log *slog.Logger) (*Controller, error) {
	interval, err := config.DurationOrDefault(cfg.Approval.PollInterval, config.DefaultApprovalPollInterval)
	if err != nil {
		return nil, fmt.Errorf("parse poll interval: %w", err)
	}

	c := &Controller{
		store:    store,
		engine:   engine,
		ops:      ops,
		impact:   impact,
		strategy: strategy,
		mapper:   mezameErrors.NewDefaultMapper(),
		log:      log,
		interval: interval,
	}

	// persisted toggle state wins over the static config default
	if store.GetBool(host.KeyApprovalEnabled) || cfg.Approval.Enabled {
		c.Enable()
	}
	return c, nil
}

// Enabled reports whether the approval loop is running.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Toggle flips the enabled state, persists it, and starts or stops the loop.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.setEnabledLocked(!c.enabled)
	return c.enabled
}

// Enable starts the loop. No-op when already enabled.
func (c *Controller) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.enabled {
		return
	}
	c.setEnabledLocked(true)
}

// Disable stops the loop. No-op when already disabled.
func (c *Controller) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.setEnabledLocked(false)
}

func (c *Controller) setEnabledLocked(enabled bool) {
	c.enabled = enabled
	if err := c.store.Set(host.KeyApprovalEnabled, enabled, host.ScopeGlobal); err != nil {
		c.log.Warn("persisting enabled state failed", "error", err)
	}
	if enabled {
		c.startLoopLocked()
		c.impact.RecordSession()
		c.log.Info("auto-approval enabled", "strategy", c.strategy.Name(), "interval", c.interval)
	} else {
		c.stopLoopLocked()
		c.log.Info("auto-approval disabled")
	}
}

// SetInterval restarts the ticker with a new period without touching the
// enabled state.
func (c *Controller) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil
	}

	c.interval = interval
	if err := c.store.Set(host.KeyApprovalInterval, interval.String(), host.ScopeGlobal); err != nil {
		c.log.Warn("persisting poll interval failed", "error", err)
	}
	if c.enabled {
		c.stopLoopLocked()
		c.startLoopLocked()
	}
	return nil
}

// Dispose stops the loop and releases strategy resources. Idempotent, and no
// tick fires after it returns.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.enabled = false
	c.stopLoopLocked()

	if closer, ok := c.strategy.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.log.Warn("strategy close failed", "error", err)
		}
	}
}

func (c *Controller) startLoopLocked() {
	if c.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop = stop
	c.done = done

	interval := c.interval
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

func (c *Controller) stopLoopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

// tick runs one approval attempt. A tick still in flight makes the next one a
// no-op rather than queueing behind it.
func (c *Controller) tick() {
	if !atomic.CompareAndSwapInt32(&c.ticking, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.ticking, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	approved, err := c.strategy.AttemptApprove(ctx)
	if err != nil {
		mapped := c.mapper.MapError(err)
		switch {
		case errors.Is(mapped, mezameErrors.ErrExpectedAbsence):
			// nothing on screen to approve; the normal idle case
			c.log.Debug("nothing to approve", "strategy", c.strategy.Name())
		case c.mapper.IsRetryable(mapped):
			c.log.Debug("approval attempt failed, will retry next tick", "strategy", c.strategy.Name(), "error", mapped)
		default:
			c.log.Warn("approval attempt failed", "strategy", c.strategy.Name(), "error", mapped)
		}
		return
	}
	if approved {
		c.impact.RecordClick("auto-approved via " + c.strategy.Name())
	}
}

// EvaluateTerminalCommand adjudicates an intercepted terminal command and logs
// the decision.
func (c *Controller) EvaluateTerminalCommand(command string) rules.Result {
	return c.evaluate(rules.Operation{Kind: rules.KindTerminal, Content: command})
}

// EvaluateFileOperation adjudicates an intercepted file create/modify/delete
// and logs the decision.
func (c *Controller) EvaluateFileOperation(path, operation string) rules.Result {
	return c.evaluate(rules.Operation{Kind: rules.KindFile, Content: path, FileOp: operation})
}

func (c *Controller) evaluate(op rules.Operation) rules.Result {
	if !c.Enabled() {
		return rules.Result{Approved: false, Reason: "auto-approval disabled"}
	}

	result := c.engine.Evaluate(op)
	details := rules.Describe(op)

	action := "approved"
	if !result.Approved {
		action = "blocked"
	}
	c.ops.Append(string(op.Kind), action, details, result.Rule)

	if result.Approved {
		c.impact.RecordClick(details)
	} else {
		c.impact.RecordBlock(details)
	}
	return result
}
