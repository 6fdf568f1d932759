package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harunnryd/mezame/internal/config"

	"github.com/robfig/cron/v3"
)

// Repeat modes of a wake-up schedule.
const (
	ModeDaily    = "daily"
	ModeWeekly   = "weekly"
	ModeInterval = "interval"
	ModeCron     = "cron"
)

// ModelQuota is one entry of a live quota snapshot.
type ModelQuota struct {
	Model       string
	PercentUsed float64 // 0..1, consumed fraction of the window
	ResetAt     time.Time
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextTrigger computes the next wake-up instant strictly after now from the
// static policy. Returns false when the policy yields nothing (disabled mode,
// empty times, unparsable crontab).
func NextTrigger(cfg config.ScheduleConfig, now time.Time) (time.Time, bool) {
	switch cfg.RepeatMode {
	case ModeDaily:
		return nextDaily(cfg.DailyTimes, now)
	case ModeWeekly:
		return nextWeekly(cfg.WeeklyDays, cfg.WeeklyTimes, now)
	case ModeInterval:
		return nextInterval(cfg.IntervalHours, cfg.IntervalStartTime, cfg.IntervalEndTime, now)
	case ModeCron:
		return nextCron(cfg.Crontab, now)
	default:
		return time.Time{}, false
	}
}

// NextTriggerAdaptive applies the wake-on-reset override before the static
// policy: if any model in the snapshot is near exhaustion and its reset is in
// the future, the earliest reset (plus a small settle delay) wins.
func NextTriggerAdaptive(cfg config.ScheduleConfig, now time.Time, snapshot []ModelQuota, threshold float64, resetDelay time.Duration) (time.Time, bool) {
	if cfg.WakeOnReset {
		if at, ok := adaptiveNext(snapshot, now, threshold, resetDelay); ok {
			return at, true
		}
	}
	return NextTrigger(cfg, now)
}

func adaptiveNext(snapshot []ModelQuota, now time.Time, threshold float64, resetDelay time.Duration) (time.Time, bool) {
	var best time.Time
	for _, mq := range snapshot {
		if mq.PercentUsed < threshold {
			continue
		}
		if !mq.ResetAt.After(now) {
			continue
		}
		candidate := mq.ResetAt.Add(resetDelay)
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	if best.IsZero() || !best.After(now) {
		return time.Time{}, false
	}
	return best, true
}

// nextDaily picks the soonest configured HH:mm strictly after now, rolling to
// the earliest time tomorrow when all of today's have passed.
func nextDaily(times []string, now time.Time) (time.Time, bool) {
	clocks := parseClocks(times)
	if len(clocks) == 0 {
		return time.Time{}, false
	}

	var best time.Time
	for _, c := range clocks {
		candidate := c.on(now)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return best, true
}

// nextWeekly scans the next 7 days (today inclusive) for configured weekdays
// and picks the soonest configured time after now.
func nextWeekly(days []string, times []string, now time.Time) (time.Time, bool) {
	daySet := parseWeekdays(days)
	clocks := parseClocks(times)
	if len(daySet) == 0 || len(clocks) == 0 {
		return time.Time{}, false
	}

	for offset := 0; offset < 8; offset++ {
		day := now.AddDate(0, 0, offset)
		if !daySet[day.Weekday()] {
			continue
		}
		var best time.Time
		for _, c := range clocks {
			candidate := c.on(day)
			if !candidate.After(now) {
				continue
			}
			if best.IsZero() || candidate.Before(best) {
				best = candidate
			}
		}
		if !best.IsZero() {
			return best, true
		}
	}
	return time.Time{}, false
}

// nextInterval walks start, start+Nh, start+2Nh ... and picks the first instant
// after now; past the optional end-of-window it rolls to tomorrow's start.
func nextInterval(hours int, startTime, endTime string, now time.Time) (time.Time, bool) {
	if hours <= 0 {
		return time.Time{}, false
	}
	start, ok := parseClock(startTime)
	if !ok {
		return time.Time{}, false
	}

	dayStart := start.on(now)
	if now.Before(dayStart) {
		return dayStart, true
	}

	end := time.Time{}
	if e, ok := parseClock(endTime); ok {
		end = e.on(now)
	}

	step := time.Duration(hours) * time.Hour
	for candidate := dayStart; ; candidate = candidate.Add(step) {
		if !end.IsZero() && candidate.After(end) {
			break
		}
		if candidate.After(now) {
			return candidate, true
		}
		// Hard stop a week out in case end is unset and now is far past start.
		if candidate.Sub(dayStart) > 7*24*time.Hour {
			break
		}
	}
	return start.on(now.AddDate(0, 0, 1)), true
}

// nextCron evaluates a crontab of one or more semicolon-joined 5-field
// expressions and returns the earliest next instant across them.
func nextCron(crontab string, now time.Time) (time.Time, bool) {
	instants := UpcomingCron(crontab, now, 1)
	if len(instants) == 0 {
		return time.Time{}, false
	}
	return instants[0], true
}

// UpcomingCron returns up to n future instants for a semicolon-joined crontab,
// de-duplicated by timestamp and sorted ascending.
func UpcomingCron(crontab string, now time.Time, n int) []time.Time {
	schedules := parseCrontab(crontab)
	if len(schedules) == 0 || n <= 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	var instants []time.Time

	// Collect per-expression instants and union them; a month's horizon bounds
	// the walk for expressions that rarely fire.
	horizon := now.AddDate(0, 0, 30)
	for _, sched := range schedules {
		cursor := now
		for count := 0; count < n; count++ {
			next := sched.Next(cursor)
			if next.IsZero() || next.After(horizon) {
				break
			}
			if _, dup := seen[next.Unix()]; !dup {
				seen[next.Unix()] = struct{}{}
				instants = append(instants, next)
			}
			cursor = next
		}
	}

	sort.Slice(instants, func(a, b int) bool { return instants[a].Before(instants[b]) })
	if len(instants) > n {
		instants = instants[:n]
	}
	return instants
}

func parseCrontab(crontab string) []cron.Schedule {
	var schedules []cron.Schedule
	for _, expr := range strings.Split(crontab, ";") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		sched, err := cronParser.Parse(expr)
		if err != nil {
			continue
		}
		schedules = append(schedules, sched)
	}
	return schedules
}

// ValidateCrontab reports the first parse failure in a semicolon-joined
// crontab, or nil.
func ValidateCrontab(crontab string) error {
	any := false
	for _, expr := range strings.Split(crontab, ";") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if _, err := cronParser.Parse(expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		any = true
	}
	if !any {
		return fmt.Errorf("crontab is empty")
	}
	return nil
}

// clock is a wall-clock HH:mm.
type clock struct {
	hour   int
	minute int
}

func (c clock) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

func parseClock(value string) (clock, bool) {
	value = strings.TrimSpace(value)
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
		return clock{}, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return clock{}, false
	}
	return clock{hour: h, minute: m}, true
}

func parseClocks(values []string) []clock {
	clocks := make([]clock, 0, len(values))
	for _, v := range values {
		if c, ok := parseClock(v); ok {
			clocks = append(clocks, c)
		}
	}
	return clocks
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

func parseWeekdays(days []string) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool)
	for _, d := range days {
		if wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]; ok {
			set[wd] = true
		}
	}
	return set
}
