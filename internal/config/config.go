package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/mezame/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	LogLevel string         `koanf:"log_level"`
	Approval ApprovalConfig `koanf:"approval"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Wake     WakeConfig     `koanf:"wake"`
	Auth     AuthConfig     `koanf:"auth"`
	History  HistoryConfig  `koanf:"history"`
	Host     HostConfig     `koanf:"host"`
	Notify   NotifyConfig   `koanf:"notify"`
	Daemon   DaemonConfig   `koanf:"daemon"`
}

type ApprovalConfig struct {
	Enabled      bool      `koanf:"enabled"`
	Strategy     string    `koanf:"strategy"`
	PollInterval string    `koanf:"poll_interval"`
	DenyList     []string  `koanf:"deny_list"`
	AllowList    []string  `koanf:"allow_list"`
	CDP          CDPConfig `koanf:"cdp"`
}

type CDPConfig struct {
	PortStart    int    `koanf:"port_start"`
	PortEnd      int    `koanf:"port_end"`
	ProbeTimeout string `koanf:"probe_timeout"`
	EvalTimeout  string `koanf:"eval_timeout"`
}

// ScheduleConfig is the single current wake-up policy. Exactly one repeat mode
// is authoritative; fields for the other modes are preserved so a UI can switch
// back without losing the user's previous values.
type ScheduleConfig struct {
	Enabled           bool     `koanf:"enabled"`
	RepeatMode        string   `koanf:"repeat_mode"`
	DailyTimes        []string `koanf:"daily_times"`
	WeeklyDays        []string `koanf:"weekly_days"`
	WeeklyTimes       []string `koanf:"weekly_times"`
	IntervalHours     int      `koanf:"interval_hours"`
	IntervalStartTime string   `koanf:"interval_start_time"`
	IntervalEndTime   string   `koanf:"interval_end_time"`
	Crontab           string   `koanf:"crontab"`
	SelectedModels    []string `koanf:"selected_models"`
	WakeOnReset       bool     `koanf:"wake_on_reset"`
	CustomPrompt      string   `koanf:"custom_prompt"`
}

type WakeConfig struct {
	BaseURL             string  `koanf:"base_url"`
	UserAgent           string  `koanf:"user_agent"`
	RequestTimeout      string  `koanf:"request_timeout"`
	MaxConcurrency      int     `koanf:"max_concurrency"`
	ResetCooldown       string  `koanf:"reset_cooldown"`
	ResetDelay          string  `koanf:"reset_delay"`
	ExhaustionThreshold float64 `koanf:"exhaustion_threshold"`
	OpenAIAPIKey        string  `koanf:"openai_api_key"`
	GeminiAPIKey        string  `koanf:"gemini_api_key"`
	AnthropicAPIKey     string  `koanf:"anthropic_api_key"`
}

type AuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	AuthorizeURL string `koanf:"authorize_url"`
	TokenURL     string `koanf:"token_url"`
	Scope        string `koanf:"scope"`
	CallbackAddr string `koanf:"callback_addr"`
	RedirectURI  string `koanf:"redirect_uri"`
	OAuthTimeout string `koanf:"oauth_timeout"`
}

type HistoryConfig struct {
	BasePath     string `koanf:"base_path"`
	OperationCap int    `koanf:"operation_cap"`
	ActivityCap  int    `koanf:"activity_cap"`
	WakeCap      int    `koanf:"wake_cap"`
	WakeMaxAge   string `koanf:"wake_max_age"`
}

type HostConfig struct {
	StatePath       string `koanf:"state_path"`
	AgentAcceptCmd  string `koanf:"agent_accept_cmd"`
	TerminalAccept  string `koanf:"terminal_accept_cmd"`
	InlineCommitCmd string `koanf:"inline_commit_cmd"`
	InvokeTimeout   string `koanf:"invoke_timeout"`
}

type NotifyConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`
}

type TelegramConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

type DaemonConfig struct {
	ShutdownTimeout     string `koanf:"shutdown_timeout"`
	HealthCheckInterval string `koanf:"health_check_interval"`
}

const (
	DefaultLogLevel                = "info"
	DefaultApprovalStrategy        = "pesosz"
	DefaultApprovalPollInterval    = "750ms"
	DefaultCDPPortStart            = 9222
	DefaultCDPPortEnd              = 9229
	DefaultCDPProbeTimeout         = "2s"
	DefaultCDPEvalTimeout          = "5s"
	DefaultScheduleRepeatMode      = "daily"
	DefaultScheduleDailyTime       = "07:00"
	DefaultScheduleIntervalHours   = 4
	DefaultScheduleIntervalStart   = "07:00"
	DefaultWakeBaseURL             = "https://cloudcode-pa.googleapis.com/v1internal"
	DefaultWakeUserAgent           = "mezame/1.0"
	DefaultWakeRequestTimeout      = "30s"
	DefaultWakeMaxConcurrency      = 3
	DefaultWakeResetCooldown       = "10m"
	DefaultWakeResetDelay          = "5m"
	DefaultWakeExhaustionThreshold = 0.8
	DefaultWakePrompt              = "hi"
	DefaultAuthAuthorizeURL        = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultAuthTokenURL            = "https://oauth2.googleapis.com/token"
	DefaultAuthScope               = "https://www.googleapis.com/auth/cloud-platform openid email"
	DefaultAuthCallbackAddr        = "localhost:8085"
	DefaultAuthRedirectURI         = "http://localhost:8085/oauth/callback"
	DefaultAuthOAuthTimeout        = "5m"
	DefaultHistoryOperationCap     = 200
	DefaultHistoryActivityCap      = 100
	DefaultHistoryWakeCap          = 50
	DefaultHistoryWakeMaxAge       = "168h"
	DefaultHostAgentAcceptCmd      = "agent.acceptAgentStep"
	DefaultHostTerminalAcceptCmd   = "terminal.accept"
	DefaultHostInlineCommitCmd     = "editor.action.inlineSuggest.commit"
	DefaultHostInvokeTimeout       = "5s"
	DefaultDaemonShutdownTimeout   = "30s"
	DefaultDaemonHealthInterval    = "30s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log_level":                    DefaultLogLevel,
		"approval.enabled":             false,
		"approval.strategy":            DefaultApprovalStrategy,
		"approval.poll_interval":       DefaultApprovalPollInterval,
		"approval.deny_list":           []string{},
		"approval.allow_list":          []string{},
		"approval.cdp.port_start":      DefaultCDPPortStart,
		"approval.cdp.port_end":        DefaultCDPPortEnd,
		"approval.cdp.probe_timeout":   DefaultCDPProbeTimeout,
		"approval.cdp.eval_timeout":    DefaultCDPEvalTimeout,
		"schedule.enabled":             false,
		"schedule.repeat_mode":         DefaultScheduleRepeatMode,
		"schedule.daily_times":         []string{DefaultScheduleDailyTime},
		"schedule.weekly_days":         []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		"schedule.weekly_times":        []string{DefaultScheduleDailyTime},
		"schedule.interval_hours":      DefaultScheduleIntervalHours,
		"schedule.interval_start_time": DefaultScheduleIntervalStart,
		"schedule.selected_models":     []string{},
		"schedule.wake_on_reset":       false,
		"schedule.custom_prompt":       DefaultWakePrompt,
		"wake.base_url":                DefaultWakeBaseURL,
		"wake.user_agent":              DefaultWakeUserAgent,
		"wake.request_timeout":         DefaultWakeRequestTimeout,
		"wake.max_concurrency":         DefaultWakeMaxConcurrency,
		"wake.reset_cooldown":          DefaultWakeResetCooldown,
		"wake.reset_delay":             DefaultWakeResetDelay,
		"wake.exhaustion_threshold":    DefaultWakeExhaustionThreshold,
		"auth.authorize_url":           DefaultAuthAuthorizeURL,
		"auth.token_url":               DefaultAuthTokenURL,
		"auth.scope":                   DefaultAuthScope,
		"auth.callback_addr":           DefaultAuthCallbackAddr,
		"auth.redirect_uri":            DefaultAuthRedirectURI,
		"auth.oauth_timeout":           DefaultAuthOAuthTimeout,
		"history.base_path":            filepath.Join(os.Getenv("HOME"), ".mezame", "history"),
		"history.operation_cap":        DefaultHistoryOperationCap,
		"history.activity_cap":         DefaultHistoryActivityCap,
		"history.wake_cap":             DefaultHistoryWakeCap,
		"history.wake_max_age":         DefaultHistoryWakeMaxAge,
		"host.state_path":              filepath.Join(os.Getenv("HOME"), ".mezame", "state"),
		"host.agent_accept_cmd":        DefaultHostAgentAcceptCmd,
		"host.terminal_accept_cmd":     DefaultHostTerminalAcceptCmd,
		"host.inline_commit_cmd":       DefaultHostInlineCommitCmd,
		"host.invoke_timeout":          DefaultHostInvokeTimeout,
		"notify.slack.enabled":         false,
		"notify.telegram.enabled":      false,
		"daemon.shutdown_timeout":      DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval": DefaultDaemonHealthInterval,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".mezame", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("MEZAME_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "MEZAME_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Wake.OpenAIAPIKey == "" {
		cfg.Wake.OpenAIAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Wake.GeminiAPIKey == "" {
		cfg.Wake.GeminiAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Wake.AnthropicAPIKey == "" {
		cfg.Wake.AnthropicAPIKey = key
	}

	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	basePath, err := expandConfiguredPath(cfg.History.BasePath)
	if err != nil {
		return err
	}
	if basePath != "" {
		cfg.History.BasePath = basePath
	}

	statePath, err := expandConfiguredPath(cfg.Host.StatePath)
	if err != nil {
		return err
	}
	if statePath != "" {
		cfg.Host.StatePath = statePath
	}

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}
