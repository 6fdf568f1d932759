package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Assumed human cost of one manual accept click.
const clickCost = 3 * time.Second

// ActivityEntry is one line in the impact activity feed.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ImpactStats are weekly-resetting counters of what the auto-approver did on
// the user's behalf.
type ImpactStats struct {
	ClicksSaved int             `json:"clicks_saved"`
	TimeSavedMs int64           `json:"time_saved_ms"`
	Sessions    int             `json:"sessions"`
	Blocked     int             `json:"blocked"`
	WeekStart   time.Time       `json:"week_start"`
	Activity    []ActivityEntry `json:"activity,omitempty"`
}

// Impact owns the stats and enforces the Sunday-midnight weekly reset.
type Impact struct {
	path        string
	activityCap int
	mu          sync.Mutex
	stats       ImpactStats
	now         func() time.Time
}

func NewImpact(basePath string, activityCap int) (*Impact, error) {
	if activityCap <= 0 {
		activityCap = 100
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, err
	}

	i := &Impact{
		path:        filepath.Join(basePath, "impact.json"),
		activityCap: activityCap,
		now:         time.Now,
	}
	if err := i.load(); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Impact) load() error {
	data, err := os.ReadFile(i.path)
	if os.IsNotExist(err) {
		i.stats.WeekStart = weekStart(i.now())
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &i.stats); err != nil {
			i.stats = ImpactStats{WeekStart: weekStart(i.now())}
		}
	}
	return nil
}

func (i *Impact) save() error {
	data, err := json.MarshalIndent(i.stats, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(i.path, bytes.NewReader(data))
}

// weekStart returns the Sunday 00:00 that begins t's week, in t's location.
func weekStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// rolloverLocked zeroes the counters when the stored week has ended.
func (i *Impact) rolloverLocked() {
	current := weekStart(i.now())
	if i.stats.WeekStart.Before(current) {
		i.stats = ImpactStats{WeekStart: current}
	}
}

// RecordClick counts one saved accept click.
func (i *Impact) RecordClick(message string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.rolloverLocked()
	i.stats.ClicksSaved++
	i.stats.TimeSavedMs += clickCost.Milliseconds()
	i.appendActivityLocked(message)
	i.save()
}

// RecordBlock counts one blocked operation.
func (i *Impact) RecordBlock(message string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.rolloverLocked()
	i.stats.Blocked++
	i.appendActivityLocked(message)
	i.save()
}

// RecordSession counts one poller session start.
func (i *Impact) RecordSession() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.rolloverLocked()
	i.stats.Sessions++
	i.save()
}

func (i *Impact) appendActivityLocked(message string) {
	if message == "" {
		return
	}
	i.stats.Activity = append(i.stats.Activity, ActivityEntry{Timestamp: i.now(), Message: message})
	if overflow := len(i.stats.Activity) - i.activityCap; overflow > 0 {
		i.stats.Activity = append([]ActivityEntry(nil), i.stats.Activity[overflow:]...)
	}
}

func (i *Impact) Stats() ImpactStats {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.rolloverLocked()
	out := i.stats
	out.Activity = make([]ActivityEntry, len(i.stats.Activity))
	copy(out.Activity, i.stats.Activity)
	return out
}
