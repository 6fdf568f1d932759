package schedule

import (
	"testing"
	"time"

	"github.com/harunnryd/mezame/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	require.NoError(t, err)
	return parsed
}

func TestNextTrigger_DailyBefore(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeDaily, DailyTimes: []string{"10:00"}}

	now := at(t, "2026-03-02 09:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 10:00"), next)
}

func TestNextTrigger_DailyAfterRollsToTomorrow(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeDaily, DailyTimes: []string{"10:00"}}

	now := at(t, "2026-03-02 11:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-03 10:00"), next)
}

func TestNextTrigger_DailyPicksSoonestOfSeveral(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeDaily, DailyTimes: []string{"18:00", "07:30", "12:00"}}

	now := at(t, "2026-03-02 08:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 12:00"), next)
}

func TestNextTrigger_DailyExactTimeIsNotToday(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeDaily, DailyTimes: []string{"10:00"}}

	// Strictly after: now == trigger time rolls to tomorrow.
	now := at(t, "2026-03-02 10:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-03 10:00"), next)
}

func TestNextTrigger_Weekly(t *testing.T) {
	cfg := config.ScheduleConfig{
		RepeatMode:  ModeWeekly,
		WeeklyDays:  []string{"monday", "friday"},
		WeeklyTimes: []string{"09:00"},
	}

	// 2026-03-02 is a Monday.
	now := at(t, "2026-03-02 08:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 09:00"), next)

	// Past Monday's slot: Friday is next.
	now = at(t, "2026-03-02 10:00")
	next, ok = NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-06 09:00"), next)

	// Past Friday too: the following Monday.
	now = at(t, "2026-03-06 10:00")
	next, ok = NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-09 09:00"), next)
}

func TestNextTrigger_Interval(t *testing.T) {
	cfg := config.ScheduleConfig{
		RepeatMode:        ModeInterval,
		IntervalHours:     4,
		IntervalStartTime: "07:00",
	}

	now := at(t, "2026-03-02 08:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 11:00"), next)
}

func TestNextTrigger_IntervalBeforeStart(t *testing.T) {
	cfg := config.ScheduleConfig{
		RepeatMode:        ModeInterval,
		IntervalHours:     4,
		IntervalStartTime: "07:00",
	}

	now := at(t, "2026-03-02 05:30")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 07:00"), next)
}

func TestNextTrigger_IntervalPastEndRollsToTomorrow(t *testing.T) {
	cfg := config.ScheduleConfig{
		RepeatMode:        ModeInterval,
		IntervalHours:     4,
		IntervalStartTime: "07:00",
		IntervalEndTime:   "19:00",
	}

	now := at(t, "2026-03-02 19:30")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-03 07:00"), next)
}

func TestNextTrigger_Cron(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeCron, Crontab: "0 7 * * *"}

	now := at(t, "2026-03-02 06:00")
	next, ok := NextTrigger(cfg, now)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 07:00"), next)
}

func TestUpcomingCron_UnionDedupSorted(t *testing.T) {
	// Both expressions fire at 12:00; the union must dedup it.
	crontab := "0 12 * * *; 0 9,12 * * *"

	now := at(t, "2026-03-02 08:00")
	instants := UpcomingCron(crontab, now, 3)
	require.Len(t, instants, 3)
	assert.Equal(t, at(t, "2026-03-02 09:00"), instants[0])
	assert.Equal(t, at(t, "2026-03-02 12:00"), instants[1])
	assert.Equal(t, at(t, "2026-03-03 09:00"), instants[2])
}

func TestNextTrigger_CronInvalidExpression(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeCron, Crontab: "not a cron"}

	_, ok := NextTrigger(cfg, time.Now())
	assert.False(t, ok)
	assert.Error(t, ValidateCrontab("not a cron"))
	assert.NoError(t, ValidateCrontab("*/15 * * * *"))
}

func TestNextTriggerAdaptive_ExhaustedModelWins(t *testing.T) {
	cfg := config.ScheduleConfig{
		RepeatMode:  ModeDaily,
		DailyTimes:  []string{"10:00"},
		WakeOnReset: true,
	}

	now := at(t, "2026-03-02 06:00")
	resetAt := now.Add(time.Hour)
	snapshot := []ModelQuota{
		{Model: "fast-model", PercentUsed: 0.4, ResetAt: resetAt},
		{Model: "drained-model", PercentUsed: 1.0, ResetAt: resetAt},
	}

	next, ok := NextTriggerAdaptive(cfg, now, snapshot, 0.8, 5*time.Minute)
	require.True(t, ok)
	assert.Equal(t, resetAt.Add(5*time.Minute), next)
}

func TestNextTriggerAdaptive_PastResetFallsBack(t *testing.T) {
	cfg := config.ScheduleConfig{
		RepeatMode:  ModeDaily,
		DailyTimes:  []string{"10:00"},
		WakeOnReset: true,
	}

	now := at(t, "2026-03-02 06:00")
	snapshot := []ModelQuota{
		{Model: "drained-model", PercentUsed: 1.0, ResetAt: now.Add(-time.Hour)},
	}

	next, ok := NextTriggerAdaptive(cfg, now, snapshot, 0.8, 5*time.Minute)
	require.True(t, ok)
	assert.Equal(t, at(t, "2026-03-02 10:00"), next)
}

func TestNextTriggerAdaptive_EarliestResetSelected(t *testing.T) {
	cfg := config.ScheduleConfig{RepeatMode: ModeDaily, DailyTimes: []string{"10:00"}, WakeOnReset: true}

	now := at(t, "2026-03-02 06:00")
	snapshot := []ModelQuota{
		{Model: "a", PercentUsed: 0.95, ResetAt: now.Add(3 * time.Hour)},
		{Model: "b", PercentUsed: 0.85, ResetAt: now.Add(1 * time.Hour)},
	}

	next, ok := NextTriggerAdaptive(cfg, now, snapshot, 0.8, 5*time.Minute)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour+5*time.Minute), next)
}

func TestNextTrigger_UnknownModeYieldsNothing(t *testing.T) {
	_, ok := NextTrigger(config.ScheduleConfig{RepeatMode: "yearly"}, time.Now())
	assert.False(t, ok)
}
