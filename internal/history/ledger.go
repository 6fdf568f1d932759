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
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// ModelOutcome is one model's result within a wake-up attempt.
type ModelOutcome struct {
	Model    string        `json:"model"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// WakeRecord is the immutable record of one wake-up attempt.
type WakeRecord struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Success       bool           `json:"success"`
	Models        []ModelOutcome `json:"models,omitempty"`
	Message       string         `json:"message,omitempty"`
	Duration      time.Duration  `json:"duration"`
	TriggerType   string         `json:"trigger_type"`
	TriggerSource string         `json:"trigger_source,omitempty"`
}

// WakeLedger keeps wake-up attempts most-recent-first, capped by count and by
// age.
type WakeLedger struct {
	path    string
	cap     int
	maxAge  time.Duration
	mu      sync.RWMutex
	records []WakeRecord
}

func NewWakeLedger(basePath string, cap int, maxAge time.Duration) (*WakeLedger, error) {
	if cap <= 0 {
		cap = 50
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, err
	}

	l := &WakeLedger{
		path:   filepath.Join(basePath, "wakeups.json"),
		cap:    cap,
		maxAge: maxAge,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *WakeLedger) load() error {
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
	var records []WakeRecord
	if err := json.Unmarshal(data, &records); err == nil {
		l.records = records
	}
	l.trimLocked(time.Now())
	return nil
}

func (l *WakeLedger) save() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(l.path, bytes.NewReader(data))
}

// Record prepends a wake-up attempt and trims by cap and age.
func (l *WakeLedger) Record(rec WakeRecord) WakeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	l.records = append([]WakeRecord{rec}, l.records...)
	l.trimLocked(time.Now())

	if err := l.save(); err != nil {
		return rec
	}
	return rec
}

func (l *WakeLedger) trimLocked(now time.Time) {
	if len(l.records) > l.cap {
		l.records = append([]WakeRecord(nil), l.records[:l.cap]...)
	}
	cutoff := now.Add(-l.maxAge)
	kept := l.records[:0]
	for _, r := range l.records {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	l.records = kept
}

func (l *WakeLedger) Records() []WakeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]WakeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Latest returns the most recent record, if any.
func (l *WakeLedger) Latest() (WakeRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return WakeRecord{}, false
	}
	return l.records[0], true
}

func (l *WakeLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
