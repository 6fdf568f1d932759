package wake

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	mezameErrors "github.com/harunnryd/mezame/internal/errors"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (string, error) { return "tok", nil }

type fakeProvider struct {
	name    string
	mu      sync.Mutex
	models  []string
	inUse   int32
	peak    int32
	failOn  map[string]bool
	latency time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Wake(ctx context.Context, model, prompt string) error {
	cur := atomic.AddInt32(&f.inUse, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	atomic.AddInt32(&f.inUse, -1)

	f.mu.Lock()
	f.models = append(f.models, model)
	fail := f.failOn[model]
	f.mu.Unlock()

	if fail {
		return assert.AnError
	}
	return nil
}

func (f *fakeProvider) woken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.models))
	copy(out, f.models)
	return out
}

func newTestTrigger(t *testing.T, cfg config.WakeConfig, models []string) (*Trigger, *fakeProvider, *history.WakeLedger) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := make([]map[string]interface{}, 0, len(models))
		for _, m := range models {
			list = append(list, map[string]interface{}{"id": m})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"models": list})
	}))
	t.Cleanup(srv.Close)

	client, err := quota.NewClient(config.WakeConfig{BaseURL: srv.URL + "/v1internal"}, staticTokens{})
	require.NoError(t, err)

	ledger, err := history.NewWakeLedger(t.TempDir(), 10, time.Hour)
	require.NoError(t, err)

	provider := &fakeProvider{name: "fake", failOn: map[string]bool{}}
	trigger, err := NewTrigger(cfg, client, provider, ledger, slog.Default())
	require.NoError(t, err)
	return trigger, provider, ledger
}

func TestTrigger_FireWakesSelectedModels(t *testing.T) {
	trigger, provider, ledger := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro", "gemini-2.5-flash"})

	rec, err := trigger.Fire(context.Background(), history.TriggerManual, "cli", config.ScheduleConfig{
		SelectedModels: []string{"gemini-2.5-pro", "gemini-2.5-flash"},
	})
	require.NoError(t, err)

	assert.True(t, rec.Success)
	assert.Len(t, rec.Models, 2)
	assert.Equal(t, history.TriggerManual, rec.TriggerType)
	assert.ElementsMatch(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, provider.woken())
	assert.Equal(t, 1, ledger.Len())
}

func TestTrigger_SucceedsWhenOneModelSucceeds(t *testing.T) {
	trigger, provider, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro", "gemini-2.5-flash"})
	provider.failOn["gemini-2.5-pro"] = true

	rec, err := trigger.Fire(context.Background(), history.TriggerAuto, "schedule", config.ScheduleConfig{
		SelectedModels: []string{"gemini-2.5-pro", "gemini-2.5-flash"},
	})
	require.NoError(t, err)
	assert.True(t, rec.Success)

	byModel := map[string]bool{}
	for _, o := range rec.Models {
		byModel[o.Model] = o.Success
	}
	assert.False(t, byModel["gemini-2.5-pro"])
	assert.True(t, byModel["gemini-2.5-flash"])
}

func TestTrigger_FailsWhenAllModelsFail(t *testing.T) {
	trigger, provider, ledger := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro"})
	provider.failOn["gemini-2.5-pro"] = true

	rec, err := trigger.Fire(context.Background(), history.TriggerManual, "cli", config.ScheduleConfig{
		SelectedModels: []string{"gemini-2.5-pro"},
	})
	require.Error(t, err)
	assert.False(t, rec.Success)
	assert.Equal(t, 1, ledger.Len(), "failed attempts are still recorded")
}

func TestTrigger_WorkerPoolBoundsConcurrency(t *testing.T) {
	models := []string{"m1", "m2", "m3", "m4", "m5", "m6"}
	trigger, provider, _ := newTestTrigger(t, config.WakeConfig{MaxConcurrency: 2}, models)
	provider.latency = 20 * time.Millisecond

	_, err := trigger.Fire(context.Background(), history.TriggerManual, "cli", config.ScheduleConfig{
		SelectedModels: models,
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&provider.peak), int32(2))
	assert.Len(t, provider.woken(), 6)
}

func TestTrigger_DefaultSelectionPicksPreferredModel(t *testing.T) {
	trigger, provider, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-flash", "gemini-2.5-pro"})

	rec, err := trigger.Fire(context.Background(), history.TriggerManual, "cli", config.ScheduleConfig{})
	require.NoError(t, err)
	require.Len(t, rec.Models, 1)
	assert.Equal(t, []string{"gemini-2.5-pro"}, provider.woken())
}

func TestTrigger_RoutesByModelPrefix(t *testing.T) {
	trigger, fallback, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gpt-4o", "gemini-2.5-pro"})
	routed := &fakeProvider{name: "routed", failOn: map[string]bool{}}
	trigger.AddRoute(PrefixRoute("gpt-", routed))

	_, err := trigger.Fire(context.Background(), history.TriggerManual, "cli", config.ScheduleConfig{
		SelectedModels: []string{"gpt-4o", "gemini-2.5-pro"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o"}, routed.woken())
	assert.Equal(t, []string{"gemini-2.5-pro"}, fallback.woken())
}

func TestTrigger_DisposedRefusesFire(t *testing.T) {
	trigger, _, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro"})
	trigger.Dispose()

	_, err := trigger.Fire(context.Background(), history.TriggerManual, "cli", config.ScheduleConfig{})
	assert.ErrorIs(t, err, mezameErrors.ErrDisposed)
}

func TestTrigger_FireOnResetDedups(t *testing.T) {
	trigger, provider, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro"})
	resetAt := time.Now().Add(-time.Minute)

	_, fired, err := trigger.FireOnReset(context.Background(), "gemini-2.5-pro", resetAt, config.ScheduleConfig{})
	require.NoError(t, err)
	assert.True(t, fired)

	_, fired, err = trigger.FireOnReset(context.Background(), "gemini-2.5-pro", resetAt, config.ScheduleConfig{})
	require.NoError(t, err)
	assert.False(t, fired, "same quota window must not fire twice")
	assert.Len(t, provider.woken(), 1)
}

func TestScheduler_NextAndStop(t *testing.T) {
	trigger, _, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro"})

	sched, err := NewScheduler(config.WakeConfig{}, config.ScheduleConfig{
		RepeatMode: "cron",
		Crontab:    "0 9 * * *",
	}, trigger, slog.Default())
	require.NoError(t, err)

	sched.Start()
	next, ok := sched.Next()
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	sched.Stop()
	_, ok = sched.Next()
	assert.False(t, ok)
}

func TestScheduler_SetScheduleRearms(t *testing.T) {
	trigger, _, _ := newTestTrigger(t, config.WakeConfig{}, []string{"gemini-2.5-pro"})

	sched, err := NewScheduler(config.WakeConfig{}, config.ScheduleConfig{
		RepeatMode: "cron",
		Crontab:    "0 9 * * *",
	}, trigger, slog.Default())
	require.NoError(t, err)

	sched.Start()
	first, ok := sched.Next()
	require.True(t, ok)

	sched.SetSchedule(config.ScheduleConfig{RepeatMode: "cron", Crontab: "30 23 * * *"})
	second, ok := sched.Next()
	require.True(t, ok)
	assert.NotEqual(t, first, second)

	sched.Stop()
}
