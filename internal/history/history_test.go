package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLog_CapEvictsOldestFirst(t *testing.T) {
	log, err := NewOperationLog(t.TempDir(), 5)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		log.Append("terminal_command", ActionApproved, fmt.Sprintf("cmd-%d", i), "")
	}

	entries := log.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "cmd-7", entries[0].Details)
	assert.Equal(t, "cmd-11", entries[4].Details)
}

func TestOperationLog_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	log, err := NewOperationLog(dir, 10)
	require.NoError(t, err)
	log.Append("file_edit", ActionBlocked, "delete main.go", "rm *")

	reopened, err := NewOperationLog(dir, 10)
	require.NoError(t, err)
	entries := reopened.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ActionBlocked, entries[0].Action)
	assert.Equal(t, "rm *", entries[0].Rule)
	assert.NotEmpty(t, entries[0].ID)
}

func TestWakeLedger_CapAndOrder(t *testing.T) {
	ledger, err := NewWakeLedger(t.TempDir(), 3, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		ledger.Record(WakeRecord{
			Success:     i%2 == 0,
			Message:     fmt.Sprintf("attempt-%d", i),
			TriggerType: TriggerAuto,
		})
	}

	records := ledger.Records()
	require.Len(t, records, 3)
	// Most recent first.
	assert.Equal(t, "attempt-5", records[0].Message)
	assert.Equal(t, "attempt-3", records[2].Message)
}

func TestWakeLedger_AgeCutoff(t *testing.T) {
	ledger, err := NewWakeLedger(t.TempDir(), 50, time.Hour)
	require.NoError(t, err)

	ledger.Record(WakeRecord{Timestamp: time.Now().Add(-2 * time.Hour), Message: "stale", TriggerType: TriggerAuto})
	ledger.Record(WakeRecord{Message: "fresh", TriggerType: TriggerManual})

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "fresh", records[0].Message)

	latest, ok := ledger.Latest()
	require.True(t, ok)
	assert.Equal(t, "fresh", latest.Message)
}

func TestImpact_Counters(t *testing.T) {
	impact, err := NewImpact(t.TempDir(), 10)
	require.NoError(t, err)

	impact.RecordSession()
	impact.RecordClick("accepted agent step")
	impact.RecordClick("accepted agent step")
	impact.RecordBlock("blocked rm -rf")

	stats := impact.Stats()
	assert.Equal(t, 2, stats.ClicksSaved)
	assert.Equal(t, 1, stats.Blocked)
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, int64(6000), stats.TimeSavedMs)
	assert.Len(t, stats.Activity, 3)
}

func TestImpact_WeeklyReset(t *testing.T) {
	impact, err := NewImpact(t.TempDir(), 10)
	require.NoError(t, err)

	impact.RecordClick("old click")

	// Jump the clock into the next week; counters must reset exactly when the
	// stored week start falls behind the current Sunday midnight.
	impact.now = func() time.Time { return time.Now().AddDate(0, 0, 7) }

	stats := impact.Stats()
	assert.Zero(t, stats.ClicksSaved)
	assert.Zero(t, stats.TimeSavedMs)
	assert.Empty(t, stats.Activity)
}

func TestImpact_SameWeekNoReset(t *testing.T) {
	impact, err := NewImpact(t.TempDir(), 10)
	require.NoError(t, err)

	impact.RecordClick("click")
	stats := impact.Stats()
	assert.Equal(t, 1, stats.ClicksSaved)

	ws := weekStart(time.Now())
	assert.Equal(t, time.Weekday(0), ws.Weekday())
	assert.False(t, ws.After(time.Now()))
}

func TestImpact_ActivityCap(t *testing.T) {
	impact, err := NewImpact(t.TempDir(), 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		impact.RecordClick(fmt.Sprintf("click-%d", i))
	}

	stats := impact.Stats()
	require.Len(t, stats.Activity, 3)
	assert.Equal(t, "click-2", stats.Activity[0].Message)
}
