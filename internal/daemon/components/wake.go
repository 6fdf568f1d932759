package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/mezame/internal/auth"
	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/daemon"
	"github.com/harunnryd/mezame/internal/logger"
	"github.com/harunnryd/mezame/internal/notify"
	"github.com/harunnryd/mezame/internal/quota"
	"github.com/harunnryd/mezame/internal/wake"
	"github.com/harunnryd/mezame/internal/wake/providers/anthropic"
	"github.com/harunnryd/mezame/internal/wake/providers/cloudcode"
	"github.com/harunnryd/mezame/internal/wake/providers/gemini"
	"github.com/harunnryd/mezame/internal/wake/providers/openai"
)

// WakeComponent owns the wake-up trigger, its providers, and the rescheduling
// scheduler.
type WakeComponent struct {
	cfg       *config.Config
	stateComp *StateComponent

	auth      *auth.Manager
	trigger   *wake.Trigger
	scheduler *wake.Scheduler
}

func NewWakeComponent(cfg *config.Config, stateComp *StateComponent) *WakeComponent {
	return &WakeComponent{cfg: cfg, stateComp: stateComp}
}

func (w *WakeComponent) Name() string {
	return "Wake"
}

func (w *WakeComponent) Dependencies() []string {
	return []string{"State"}
}

func (w *WakeComponent) Init(ctx context.Context) error {
	if w.stateComp == nil {
		return fmt.Errorf("stateComp not provided")
	}
	secrets := w.stateComp.SecretStore()
	if secrets == nil {
		return fmt.Errorf("secret store not initialized")
	}

	log := logger.For("wake")

	w.auth = auth.NewManager(w.cfg.Auth, secrets)
	client, err := quota.NewClient(w.cfg.Wake, w.auth)
	if err != nil {
		return fmt.Errorf("failed to build quota client: %w", err)
	}

	fallback := cloudcode.New(client)
	if creds, err := w.auth.Get(ctx); err == nil && creds.ProjectID != "" {
		fallback.SetProjectID(creds.ProjectID)
	}

	trigger, err := wake.NewTrigger(w.cfg.Wake, client, fallback, w.stateComp.WakeLedger(), log)
	if err != nil {
		return fmt.Errorf("failed to build wake trigger: %w", err)
	}
	w.trigger = trigger

	w.addProviderRoutes(log)
	w.addNotifiers(log)

	scheduler, err := wake.NewScheduler(w.cfg.Wake, w.cfg.Schedule, trigger, log)
	if err != nil {
		return fmt.Errorf("failed to build wake scheduler: %w", err)
	}
	w.scheduler = scheduler

	slog.Info("Wake trigger initialized", "component", w.Name(), "schedule_enabled", w.cfg.Schedule.Enabled)
	return nil
}

// addProviderRoutes wires non-default model families to their own APIs.
// Routes are only added when a key is configured; everything else goes through
// the cloud companion endpoint.
func (w *WakeComponent) addProviderRoutes(log *slog.Logger) {
	if w.cfg.Wake.OpenAIAPIKey != "" {
		w.trigger.AddRoute(wake.PrefixRoute("gpt-", openai.New(w.cfg.Wake.OpenAIAPIKey, "")))
		w.trigger.AddRoute(wake.PrefixRoute("o1", openai.New(w.cfg.Wake.OpenAIAPIKey, "")))
	}
	if w.cfg.Wake.AnthropicAPIKey != "" {
		w.trigger.AddRoute(wake.PrefixRoute("claude-", anthropic.New(w.cfg.Wake.AnthropicAPIKey)))
	}
	if w.cfg.Wake.GeminiAPIKey != "" {
		p, err := gemini.New(w.cfg.Wake.GeminiAPIKey)
		if err != nil {
			log.Warn("gemini provider unavailable", "error", err)
		} else {
			w.trigger.AddRoute(wake.PrefixRoute("gemini-", p))
		}
	}
}

func (w *WakeComponent) addNotifiers(log *slog.Logger) {
	if w.cfg.Notify.Slack.Enabled {
		w.trigger.AddNotifier(notify.NewSlack(w.cfg.Notify.Slack))
	}
	if w.cfg.Notify.Telegram.Enabled {
		n, err := notify.NewTelegram(w.cfg.Notify.Telegram)
		if err != nil {
			log.Warn("telegram notifier unavailable", "error", err)
		} else {
			w.trigger.AddNotifier(n)
		}
	}
}

func (w *WakeComponent) Start(ctx context.Context) error {
	if w.scheduler == nil {
		return fmt.Errorf("wake scheduler not initialized")
	}
	if w.cfg.Schedule.Enabled {
		w.scheduler.Start()
		slog.Info("Wake scheduler armed", "component", w.Name())
	}
	return nil
}

func (w *WakeComponent) Stop(ctx context.Context) error {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	if w.trigger != nil {
		w.trigger.Dispose()
	}
	slog.Info("Wake stopped", "component", w.Name())
	return nil
}

func (w *WakeComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if w.trigger == nil {
		return &daemon.ComponentHealth{
			Name:    w.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	return &daemon.ComponentHealth{Name: w.Name(), Healthy: true}, nil
}

func (w *WakeComponent) GetTrigger() *wake.Trigger { return w.trigger }
func (w *WakeComponent) GetScheduler() *wake.Scheduler { return w.scheduler }
func (w *WakeComponent) GetAuthManager() *auth.Manager { return w.auth }
