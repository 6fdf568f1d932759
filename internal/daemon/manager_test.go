package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/mezame/internal/config"
)

type mockComponent struct {
	name         string
	dependencies []string
	initCalled   bool
	startCalled  bool
	stopCalled   bool
	initError    error
	startError   error
	healthResult *ComponentHealth
}

func newMockComponent(name string, dependencies []string) *mockComponent {
	return &mockComponent{
		name:         name,
		dependencies: dependencies,
		healthResult: &ComponentHealth{
			Name:    name,
			Healthy: true,
		},
	}
}

func (m *mockComponent) Name() string {
	return m.name
}

func (m *mockComponent) Dependencies() []string {
	return m.dependencies
}

func (m *mockComponent) Init(ctx context.Context) error {
	m.initCalled = true
	return m.initError
}

func (m *mockComponent) Start(ctx context.Context) error {
	m.startCalled = true
	return m.startError
}

func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopCalled = true
	return nil
}

func (m *mockComponent) Health(ctx context.Context) (*ComponentHealth, error) {
	return m.healthResult, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		History: config.HistoryConfig{BasePath: filepath.Join(dir, "history")},
		Host:    config.HostConfig{StatePath: filepath.Join(dir, "state")},
	}
}

func TestDaemon_InitOrderRespectsDependencies(t *testing.T) {
	d := NewDaemon(testConfig(t))

	wake := newMockComponent("Wake", []string{"State"})
	state := newMockComponent("State", nil)
	d.AddComponent(wake)
	d.AddComponent(state)

	order, err := d.resolveInitOrder()
	if err != nil {
		t.Fatalf("resolveInitOrder: %v", err)
	}
	if order[0] != "State" || order[1] != "Wake" {
		t.Errorf("unexpected init order: %v", order)
	}
}

func TestDaemon_MissingDependencyRejected(t *testing.T) {
	d := NewDaemon(testConfig(t))
	d.AddComponent(newMockComponent("Approver", []string{"Rules"}))

	if err := d.validateDependencies(); err == nil {
		t.Error("expected error for unregistered dependency")
	}
}

func TestDaemon_CircularDependencyRejected(t *testing.T) {
	d := NewDaemon(testConfig(t))
	d.AddComponent(newMockComponent("A", []string{"B"}))
	d.AddComponent(newMockComponent("B", []string{"A"}))

	if _, err := d.resolveInitOrder(); err == nil {
		t.Error("expected circular dependency error")
	}
}

func TestDaemon_StartAndGracefulShutdown(t *testing.T) {
	d := NewDaemon(testConfig(t))
	state := newMockComponent("State", nil)
	wake := newMockComponent("Wake", []string{"State"})
	d.AddComponent(state)
	d.AddComponent(wake)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- d.Start(ctx)
	}()

	waitFor(t, func() bool { return d.Health() == StatusRunning })
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	if !state.initCalled || !state.startCalled || !state.stopCalled {
		t.Error("state component lifecycle incomplete")
	}
	if !wake.stopCalled {
		t.Error("wake component was not stopped")
	}
	if d.Health() != StatusStopped {
		t.Errorf("expected stopped, got %s", d.Health())
	}
}

func TestDaemon_InitFailureRollsBack(t *testing.T) {
	d := NewDaemon(testConfig(t))
	state := newMockComponent("State", nil)
	broken := newMockComponent("Wake", []string{"State"})
	broken.initError = context.DeadlineExceeded
	d.AddComponent(state)
	d.AddComponent(broken)

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected init failure")
	}
	if !state.stopCalled {
		t.Error("initialized components must be rolled back")
	}
}

func TestDaemon_CreatesStateDirectories(t *testing.T) {
	cfg := testConfig(t)

	d := NewDaemon(cfg)
	if err := d.validateConfig(); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}

	for _, path := range []string{cfg.History.BasePath, cfg.Host.StatePath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", path)
		}
	}
}

func TestDaemon_InvalidCrontabRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.RepeatMode = "cron"
	cfg.Schedule.Crontab = "not a crontab"

	d := NewDaemon(cfg)
	if err := d.Start(context.Background()); err == nil {
		t.Error("expected crontab validation failure")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
