package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

const lockRetryInterval = 100 * time.Millisecond

// FileConfigStore persists configuration values as one JSON document per
// scope. Writes go through an OS file lock so a second process (the IDE bridge
// and the standalone daemon) cannot interleave partial states.
type FileConfigStore struct {
	basePath string
	mu       sync.RWMutex
	global   map[string]interface{}
	local    map[string]interface{}
}

func NewFileConfigStore(basePath string) (*FileConfigStore, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &FileConfigStore{
		basePath: basePath,
		global:   make(map[string]interface{}),
		local:    make(map[string]interface{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileConfigStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range []struct {
		name string
		dst  *map[string]interface{}
	}{
		{"config-global.json", &s.global},
		{"config-workspace.json", &s.local},
	} {
		data, err := os.ReadFile(filepath.Join(s.basePath, target.name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		// Malformed persisted state is overwritten on the next write, not
		// propagated.
		var values map[string]interface{}
		if err := json.Unmarshal(data, &values); err == nil {
			*target.dst = values
		}
	}
	return nil
}

func (s *FileConfigStore) lookup(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.local[key]; ok {
		return v, true
	}
	v, ok := s.global[key]
	return v, ok
}

func (s *FileConfigStore) GetString(key string) string {
	if v, ok := s.lookup(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func (s *FileConfigStore) GetBool(key string) bool {
	if v, ok := s.lookup(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func (s *FileConfigStore) GetStringSlice(key string) []string {
	v, ok := s.lookup(key)
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case []string:
		out := make([]string, len(typed))
		copy(out, typed)
		return out
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func (s *FileConfigStore) Set(key string, value interface{}, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := "config-global.json"
	target := s.global
	if scope == ScopeWorkspace {
		name = "config-workspace.json"
		target = s.local
	}
	target[key] = value

	return writeLocked(filepath.Join(s.basePath, name), target)
}

// FileSecretStore keeps opaque blobs in a mode-0600 JSON file. It is only used
// for credential JSON; callers treat values as opaque.
type FileSecretStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSecretStore(basePath string) (*FileSecretStore, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileSecretStore{path: filepath.Join(basePath, "secrets.json")}, nil
}

func (s *FileSecretStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &secrets); err != nil {
			// Corrupt secret file: start fresh rather than block every caller.
			return make(map[string]string), nil
		}
	}
	return secrets, nil
}

func (s *FileSecretStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := secrets[key]
	return v, ok, nil
}

func (s *FileSecretStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.read()
	if err != nil {
		return err
	}
	secrets[key] = value
	if err := writeLocked(s.path, secrets); err != nil {
		return err
	}
	return os.Chmod(s.path, 0600)
}

func (s *FileSecretStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.read()
	if err != nil {
		return err
	}
	delete(secrets, key)
	return writeLocked(s.path, secrets)
}

func writeLocked(path string, value interface{}) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", path, err)
	}
	if !locked {
		// One retry; writers are short-lived.
		time.Sleep(lockRetryInterval)
		locked, err = lock.TryLock()
		if err != nil || !locked {
			return fmt.Errorf("state file %s is locked by another process", path)
		}
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
