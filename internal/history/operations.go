package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
)

const (
	ActionApproved = "approved"
	ActionBlocked  = "blocked"
)

// OperationEntry records one auto-approval decision.
type OperationEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Rule      string    `json:"rule,omitempty"`
}

// OperationLog is the append-only bounded decision log. Oldest entries are
// evicted first; the log survives restarts via its backing file.
type OperationLog struct {
	path    string
	cap     int
	mu      sync.RWMutex
	entries []OperationEntry
}

func NewOperationLog(basePath string, cap int) (*OperationLog, error) {
	if cap <= 0 {
		cap = 200
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, err
	}

	l := &OperationLog{
		path: filepath.Join(basePath, "operations.json"),
		cap:  cap,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *OperationLog) load() error {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	// Corrupt history is not worth failing startup over; it gets overwritten
	// on the next append.
	var entries []OperationEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		l.entries = entries
	}
	return nil
}

func (l *OperationLog) save() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(l.path, bytes.NewReader(data))
}

// Append records a decision, evicting the oldest entries beyond the cap.
func (l *OperationLog) Append(opType, action, details, rule string) OperationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := OperationEntry{
		ID:        ulid.Make().String(),
		Timestamp: time.Now(),
		Type:      opType,
		Action:    action,
		Details:   details,
		Rule:      rule,
	}

	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.cap; overflow > 0 {
		l.entries = append([]OperationEntry(nil), l.entries[overflow:]...)
	}

	if err := l.save(); err != nil {
		// History persistence is best-effort; the in-memory log stays correct.
		return entry
	}
	return entry
}

func (l *OperationLog) Entries() []OperationEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]OperationEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *OperationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *OperationLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	return l.save()
}
