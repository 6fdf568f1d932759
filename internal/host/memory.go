package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryConfigStore is an in-process ConfigStore. It backs tests and the
// standalone daemon when no IDE bridge is attached.
type MemoryConfigStore struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{values: make(map[string]interface{})}
}

func (s *MemoryConfigStore) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return ""
}

func (s *MemoryConfigStore) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return false
}

func (s *MemoryConfigStore) GetStringSlice(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch v := s.values[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func (s *MemoryConfigStore) Set(key string, value interface{}, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// MemorySecretStore is an in-process SecretStore for tests.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]string)}
}

func (s *MemorySecretStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[key]
	return v, ok, nil
}

func (s *MemorySecretStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
	return nil
}

func (s *MemorySecretStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
	return nil
}

// RecordingInvoker remembers every invoked command. Tests assert on it; the
// standalone daemon uses it as a stand-in when no IDE bridge is configured.
type RecordingInvoker struct {
	mu       sync.Mutex
	invoked  []string
	failWith map[string]error
}

func NewRecordingInvoker() *RecordingInvoker {
	return &RecordingInvoker{failWith: make(map[string]error)}
}

func (r *RecordingInvoker) Invoke(ctx context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoked = append(r.invoked, command)
	if err, ok := r.failWith[command]; ok {
		return err
	}
	return nil
}

func (r *RecordingInvoker) Invoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.invoked))
	copy(out, r.invoked)
	return out
}

func (r *RecordingInvoker) FailOn(command string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("command failed: %s", command)
	}
	r.failWith[command] = err
}

// LoggingInvoker logs invocations at debug level and always succeeds.
type LoggingInvoker struct{}

func (LoggingInvoker) Invoke(ctx context.Context, command string) error {
	slog.Debug("Host command invoked", "command", command)
	return nil
}
