package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/harunnryd/mezame/internal/host"
	"github.com/harunnryd/mezame/internal/match"

	"github.com/google/shlex"
)

// OperationKind identifies what an agent step wants to do.
type OperationKind string

const (
	KindTerminal OperationKind = "terminal_command"
	KindFile     OperationKind = "file_edit"
)

// Operation describes one agent step up for adjudication.
type Operation struct {
	Kind    OperationKind
	Content string
	FileOp  string // create, modify, delete; file operations only
}

// Result is produced fresh per evaluation and never persisted as an entity.
type Result struct {
	Approved bool
	Reason   string
	Rule     string
}

// hardcodedDenyList can never be overridden by configuration. It is a
// best-effort safety net against the obviously catastrophic, not a sandbox.
var hardcodedDenyList = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -rf ~",
	"rm -rf ~/",
	"rm -rf .",
	"rm -fr /",
	"sudo rm -rf",
	"mkfs",
	"mkfs.",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	"dd of=/dev/sd",
	"dd of=/dev/hd",
	"dd of=/dev/nvme",
	":(){ :|:& };:",
	":(){:|:&};:",
	"chmod -R 777 /",
	"chmod 777 /",
	"chown -R / ",
	"shutdown",
	"reboot",
	"halt -f",
	"poweroff",
	"> /dev/sda",
	"curl * | sh",
	"curl * | bash",
	"wget * | sh",
	"wget * | bash",
	"format c:",
	"del /f /s /q c:\\",
}

// Engine adjudicates operations against the hardcoded deny list and the
// user-configured deny/allow lists. Evaluate is pure; logging is the caller's
// responsibility.
type Engine struct {
	cfg host.ConfigStore

	mu        sync.RWMutex
	denyList  []string
	allowList []string
}

func NewEngine(cfg host.ConfigStore) *Engine {
	e := &Engine{cfg: cfg}
	e.Reload()
	return e
}

// Reload re-reads the deny/allow lists from the host configuration store.
func (e *Engine) Reload() {
	deny := e.cfg.GetStringSlice(host.KeyDenyList)
	allow := e.cfg.GetStringSlice(host.KeyAllowList)

	e.mu.Lock()
	e.denyList = deny
	e.allowList = allow
	e.mu.Unlock()
}

// Evaluate runs the check chain; first match short-circuits. Known kinds with
// no matching pattern default to approve. That default is a product decision:
// enabling auto-approve with empty lists approves everything not
// hardcoded-denied.
func (e *Engine) Evaluate(op Operation) Result {
	switch op.Kind {
	case KindTerminal, KindFile:
	default:
		return Result{Approved: false, Reason: fmt.Sprintf("unknown operation type: %s", op.Kind)}
	}

	if rule, ok := match.MatchesAny(op.Content, hardcodedDenyList); ok {
		return Result{Approved: false, Reason: "blocked by built-in safety rules", Rule: rule}
	}

	e.mu.RLock()
	deny := e.denyList
	allow := e.allowList
	e.mu.RUnlock()

	if rule, ok := match.MatchesAny(op.Content, deny); ok {
		return Result{Approved: false, Reason: "blocked by deny list", Rule: rule}
	}

	if rule, ok := match.MatchesAny(op.Content, allow); ok {
		return Result{Approved: true, Reason: "allowed by allow list", Rule: rule}
	}

	return Result{Approved: true, Reason: "default policy"}
}

// Describe renders a short log detail for an operation. For terminal commands
// the leading verb is extracted so history stays readable for long one-liners.
func Describe(op Operation) string {
	switch op.Kind {
	case KindTerminal:
		verb := commandVerb(op.Content)
		if verb != "" && verb != op.Content {
			return fmt.Sprintf("%s: %s", verb, truncate(op.Content, 160))
		}
		return truncate(op.Content, 160)
	case KindFile:
		return fmt.Sprintf("%s %s", op.FileOp, op.Content)
	default:
		return truncate(op.Content, 160)
	}
}

func commandVerb(command string) string {
	parts, err := shlex.Split(command)
	if err != nil || len(parts) == 0 {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	return parts[0]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func (e *Engine) DenyList() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.denyList))
	copy(out, e.denyList)
	return out
}

func (e *Engine) AllowList() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.allowList))
	copy(out, e.allowList)
	return out
}

// HardcodedDenyList exposes a copy of the immutable safety patterns.
func HardcodedDenyList() []string {
	out := make([]string, len(hardcodedDenyList))
	copy(out, hardcodedDenyList)
	return out
}

func (e *Engine) AddDenyRule(pattern string) error {
	return e.addRule(host.KeyDenyList, pattern)
}

func (e *Engine) AddAllowRule(pattern string) error {
	return e.addRule(host.KeyAllowList, pattern)
}

func (e *Engine) addRule(key, pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("rule pattern is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	list := &e.denyList
	if key == host.KeyAllowList {
		list = &e.allowList
	}
	for _, existing := range *list {
		if existing == pattern {
			return nil
		}
	}
	*list = append(*list, pattern)

	return e.cfg.Set(key, append([]string(nil), *list...), host.ScopeGlobal)
}

// RemoveRule deletes pattern from whichever list carries it.
func (e *Engine) RemoveRule(pattern string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, target := range []struct {
		key  string
		list *[]string
	}{
		{host.KeyDenyList, &e.denyList},
		{host.KeyAllowList, &e.allowList},
	} {
		for i, existing := range *target.list {
			if existing == pattern {
				*target.list = append((*target.list)[:i], (*target.list)[i+1:]...)
				return e.cfg.Set(target.key, append([]string(nil), *target.list...), host.ScopeGlobal)
			}
		}
	}
	return fmt.Errorf("rule not found: %s", pattern)
}
