package wake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mezame/internal/concurrency"
	"github.com/harunnryd/mezame/internal/config"
	mezameErrors "github.com/harunnryd/mezame/internal/errors"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/quota"
	"github.com/harunnryd/mezame/internal/schedule"
)

// Notifier receives the outcome of every wake-up attempt. Failures inside a
// notifier are logged and never affect the attempt's result.
type Notifier interface {
	Name() string
	WakeCompleted(ctx context.Context, rec history.WakeRecord) error
}

// Route binds a model-name predicate to the provider that serves it.
type Route struct {
	Match    func(model string) bool
	Provider Provider
}

// PrefixRoute routes models whose name starts with prefix, case-insensitive.
func PrefixRoute(prefix string, p Provider) Route {
	lower := strings.ToLower(prefix)
	return Route{
		Match: func(model string) bool {
			return strings.HasPrefix(strings.ToLower(model), lower)
		},
		Provider: p,
	}
}

// Trigger executes wake-up attempts: it resolves the target models, fans the
// calls out over a bounded worker pool, and records the aggregate outcome.
type Trigger struct {
	cfg      config.WakeConfig
	client   *quota.Client
	fallback Provider
	routes   []Route
	ledger   *history.WakeLedger
	dedup    *resetDedup
	notify   []Notifier
	log      *slog.Logger

	mu       sync.Mutex
	disposed bool
}

func NewTrigger(cfg config.WakeConfig, client *quota.Client, fallback Provider, ledger *history.WakeLedger, log *slog.Logger) (*Trigger, error) {
	cooldown, err := config.DurationOrDefault(cfg.ResetCooldown, config.DefaultWakeResetCooldown)
	if err != nil {
		return nil, fmt.Errorf("parse reset cooldown: %w", err)
	}

	return &Trigger{
		cfg:      cfg,
		client:   client,
		fallback: fallback,
		ledger:   ledger,
		dedup:    newResetDedup(cooldown),
		log:      log,
	}, nil
}

func (t *Trigger) AddRoute(r Route) {
	t.routes = append(t.routes, r)
}

func (t *Trigger) AddNotifier(n Notifier) {
	t.notify = append(t.notify, n)
}

func (t *Trigger) providerFor(model string) Provider {
	for _, r := range t.routes {
		if r.Match(model) {
			return r.Provider
		}
	}
	return t.fallback
}

// Quotas returns the live usage snapshot in the form the schedule calculator
// consumes.
func (t *Trigger) Quotas(ctx context.Context) ([]schedule.ModelQuota, error) {
	models, err := t.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schedule.ModelQuota, 0, len(models))
	for _, m := range models {
		out = append(out, schedule.ModelQuota{
			Model:       m.Model,
			PercentUsed: m.PercentUsed,
			ResetAt:     m.ResetAt,
		})
	}
	return out, nil
}

// Fire runs one wake-up attempt against the configured models and records it.
// The attempt succeeds when at least one model call succeeds.
func (t *Trigger) Fire(ctx context.Context, triggerType, source string, sched config.ScheduleConfig) (history.WakeRecord, error) {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return history.WakeRecord{}, mezameErrors.ErrDisposed
	}
	t.mu.Unlock()

	start := time.Now()

	models := sched.SelectedModels
	available, err := t.client.ListModels(ctx)
	if err != nil {
		t.log.Warn("model listing failed, using configured selection", "error", err)
	} else {
		models = quota.SelectModels(available, sched.SelectedModels)
	}
	if len(models) == 0 {
		rec := t.record(history.WakeRecord{
			Success:       false,
			Message:       "no wake targets available",
			Duration:      time.Since(start),
			TriggerType:   triggerType,
			TriggerSource: source,
		})
		return rec, fmt.Errorf("no wake targets: %w", mezameErrors.ErrExpectedAbsence)
	}

	outcomes := t.fanOut(ctx, models, sched.CustomPrompt)

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}

	rec := history.WakeRecord{
		Success:       succeeded > 0,
		Models:        outcomes,
		Message:       fmt.Sprintf("%d/%d models woken", succeeded, len(outcomes)),
		Duration:      time.Since(start),
		TriggerType:   triggerType,
		TriggerSource: source,
	}
	rec = t.record(rec)

	if !rec.Success {
		return rec, fmt.Errorf("all %d wake calls failed", len(outcomes))
	}
	return rec, nil
}

// FireOnReset runs a reset-driven wake for one model's quota window, subject
// to per-window dedup and the global cooldown.
func (t *Trigger) FireOnReset(ctx context.Context, model string, resetAt time.Time, sched config.ScheduleConfig) (history.WakeRecord, bool, error) {
	if !t.dedup.ShouldFire(model, resetAt) {
		t.log.Debug("reset wake suppressed", "model", model, "reset_at", resetAt)
		return history.WakeRecord{}, false, nil
	}

	scoped := sched
	scoped.SelectedModels = []string{model}
	rec, err := t.Fire(ctx, history.TriggerAuto, "reset", scoped)
	return rec, true, err
}

// fanOut wakes every model over a fixed-size worker pool. Workers pull
// unclaimed indices until the list is drained.
func (t *Trigger) fanOut(ctx context.Context, models []string, prompt string) []history.ModelOutcome {
	if prompt == "" {
		prompt = config.DefaultWakePrompt
	}

	concurrencyN := t.cfg.MaxConcurrency
	if concurrencyN <= 0 {
		concurrencyN = config.DefaultWakeMaxConcurrency
	}
	if concurrencyN > len(models) {
		concurrencyN = len(models)
	}

	outcomes := make([]history.ModelOutcome, len(models))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < concurrencyN; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				outcomes[i] = t.wakeOne(ctx, models[i], prompt)
			}
		}()
	}

	for i := range models {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return outcomes
}

func (t *Trigger) wakeOne(ctx context.Context, model, prompt string) history.ModelOutcome {
	start := time.Now()
	provider := t.providerFor(model)

	err := provider.Wake(ctx, model, prompt)
	outcome := history.ModelOutcome{
		Model:    model,
		Success:  err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		outcome.Message = err.Error()
		t.log.Warn("wake call failed", "model", model, "provider", provider.Name(), "error", err)
	} else {
		t.log.Info("model woken", "model", model, "provider", provider.Name(), "duration", outcome.Duration)
	}
	return outcome
}

func (t *Trigger) record(rec history.WakeRecord) history.WakeRecord {
	rec = t.ledger.Record(rec)

	for _, n := range t.notify {
		n := n
		concurrency.SafeGo(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := n.WakeCompleted(ctx, rec); err != nil {
				t.log.Warn("notifier failed", "notifier", n.Name(), "error", err)
			}
		}, nil)
	}
	return rec
}

// Dispose marks the trigger unusable. In-flight attempts finish; new ones are
// refused.
func (t *Trigger) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposed = true
}
