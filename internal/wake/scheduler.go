package wake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/history"
	"github.com/harunnryd/mezame/internal/schedule"
)

// Scheduler arms a one-shot timer at the next trigger instant and re-arms it
// after every firing while enabled. Arming is one-shot on purpose: the policy
// or the quota snapshot may have changed by the time a firing completes, so
// each re-arm recomputes the target from scratch.
type Scheduler struct {
	trigger *Trigger
	timer   *schedule.Timer
	log     *slog.Logger

	threshold  float64
	resetDelay time.Duration

	mu         sync.Mutex
	sched      config.ScheduleConfig
	enabled    bool
	next       time.Time
	resetModel string    // non-empty when the armed firing is reset-driven
	resetAt    time.Time // the quota window behind a reset-driven firing
}

func NewScheduler(wakeCfg config.WakeConfig, sched config.ScheduleConfig, trigger *Trigger, log *slog.Logger) (*Scheduler, error) {
	resetDelay, err := config.DurationOrDefault(wakeCfg.ResetDelay, config.DefaultWakeResetDelay)
	if err != nil {
		return nil, fmt.Errorf("parse reset delay: %w", err)
	}

	threshold := wakeCfg.ExhaustionThreshold
	if threshold <= 0 {
		threshold = config.DefaultWakeExhaustionThreshold
	}

	return &Scheduler{
		trigger:    trigger,
		timer:      schedule.NewTimer(),
		log:        log,
		threshold:  threshold,
		resetDelay: resetDelay,
		sched:      sched,
	}, nil
}

// Start arms the scheduler. Safe to call repeatedly.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	s.rearm()
}

// Stop cancels the armed firing. In-flight firings complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.enabled = false
	s.next = time.Time{}
	s.mu.Unlock()
	s.timer.Stop()
}

// SetSchedule replaces the wake policy and re-arms against it.
func (s *Scheduler) SetSchedule(sched config.ScheduleConfig) {
	s.mu.Lock()
	s.sched = sched
	enabled := s.enabled
	s.mu.Unlock()
	if enabled {
		s.rearm()
	}
}

// Next returns the armed trigger instant, if one is pending.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.next.IsZero() {
		return time.Time{}, false
	}
	return s.next, true
}

func (s *Scheduler) rearm() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	sched := s.sched
	s.mu.Unlock()

	now := time.Now()
	snapshot := s.snapshot(sched)

	next, ok := schedule.NextTriggerAdaptive(sched, now, snapshot, s.threshold, s.resetDelay)
	if !ok {
		s.log.Info("no upcoming trigger, scheduler idle", "repeat_mode", sched.RepeatMode)
		s.mu.Lock()
		s.next = time.Time{}
		s.mu.Unlock()
		return
	}

	resetModel, resetAt := s.resetSource(snapshot, now, next)

	s.mu.Lock()
	s.next = next
	s.resetModel = resetModel
	s.resetAt = resetAt
	s.mu.Unlock()

	s.log.Info("wake armed", "at", next, "in", time.Until(next).Round(time.Second), "reset_driven", resetModel != "")
	s.timer.Schedule(next, s.onFire)
}

// snapshot fetches live quotas for the adaptive override. Fetch failures fall
// back to the static policy.
func (s *Scheduler) snapshot(sched config.ScheduleConfig) []schedule.ModelQuota {
	if !sched.WakeOnReset {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := s.trigger.Quotas(ctx)
	if err != nil {
		s.log.Warn("quota snapshot failed, static schedule only", "error", err)
		return nil
	}
	return snapshot
}

// resetSource identifies which exhausted model, if any, produced the armed
// instant, so the firing can go through reset dedup.
func (s *Scheduler) resetSource(snapshot []schedule.ModelQuota, now, next time.Time) (string, time.Time) {
	for _, mq := range snapshot {
		if mq.PercentUsed < s.threshold || !mq.ResetAt.After(now) {
			continue
		}
		if mq.ResetAt.Add(s.resetDelay).Equal(next) {
			return mq.Model, mq.ResetAt
		}
	}
	return "", time.Time{}
}

func (s *Scheduler) onFire() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	sched := s.sched
	resetModel, resetAt := s.resetModel, s.resetAt
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var rec history.WakeRecord
	var err error
	if resetModel != "" {
		var fired bool
		rec, fired, err = s.trigger.FireOnReset(ctx, resetModel, resetAt, sched)
		if !fired {
			s.rearm()
			return
		}
	} else {
		rec, err = s.trigger.Fire(ctx, history.TriggerAuto, "schedule", sched)
	}

	if err != nil {
		s.log.Warn("scheduled wake failed", "error", err)
	} else {
		s.log.Info("scheduled wake complete", "success", rec.Success, "models", len(rec.Models), "duration", rec.Duration)
	}

	s.rearm()
}
