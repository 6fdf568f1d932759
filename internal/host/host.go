package host

import "context"

// Scope selects where a configuration write lands.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeWorkspace Scope = "workspace"
)

// Well-known configuration keys under the extension namespace.
const (
	KeyApprovalEnabled  = "mezame.approval.enabled"
	KeyApprovalStrategy = "mezame.approval.strategy"
	KeyApprovalInterval = "mezame.approval.pollInterval"
	KeyDenyList         = "mezame.approval.denyList"
	KeyAllowList        = "mezame.approval.allowList"
	KeyScheduleConfig   = "mezame.wake.schedule"
	KeyCredentialBlob   = "mezame.auth.credentials"
)

// CommandInvoker executes a named host IDE command. Invocation is
// fire-and-forget; unknown or inapplicable commands return an error the caller
// is expected to swallow.
type CommandInvoker interface {
	Invoke(ctx context.Context, command string) error
}

// ConfigStore is the host's typed configuration surface under namespaced keys.
type ConfigStore interface {
	GetString(key string) string
	GetBool(key string) bool
	GetStringSlice(key string) []string
	Set(key string, value interface{}, scope Scope) error
}

// SecretStore holds opaque string blobs, used only for credential JSON.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
