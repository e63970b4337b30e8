// Package scheduler drives the polling cycles and the once-daily reset.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pulse_bot/internal/config"
	"pulse_bot/internal/model"
	"pulse_bot/internal/storage"
)

// CycleRunner executes one end-to-end fetch cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler ticks at a fixed interval and fires a daily reset at a
// wall-clock time in a configured timezone. Cycle execution is guarded by a
// mutex: a tick arriving while a cycle is still running is skipped, never
// queued. The daily reset is the exception, it waits for the lock instead.
type Scheduler struct {
	store      storage.Storage
	runner     CycleRunner
	log        *slog.Logger
	tick       time.Duration
	resetHour  int
	resetMin   int
	loc        *time.Location
	mu         sync.Mutex
	now        func() time.Time
}

// New creates a Scheduler from the application config.
func New(store storage.Storage, runner CycleRunner, cfg *config.Config, log *slog.Logger) (*Scheduler, error) {
	hour, minute, err := config.ParseClock(cfg.ResetTime)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.ResetTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return &Scheduler{
		store:     store,
		runner:    runner,
		log:       log,
		tick:      cfg.PollInterval,
		resetHour: hour,
		resetMin:  minute,
		loc:       loc,
		now:       time.Now,
	}, nil
}

// SetTickInterval overrides the poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetNow overrides the clock (useful for testing).
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Tick(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	resetTimer := time.NewTimer(time.Until(s.nextReset(s.now())))
	defer resetTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		case <-resetTimer.C:
			s.DailyReset(ctx)
			resetTimer.Reset(time.Until(s.nextReset(s.now())))
		}
	}
}

// Tick runs one guarded, pause-aware cycle. When monitoring is paused the
// tick is a logged no-op. The current adaptive offset is waited out before
// the cycle lock is taken, so a manual trigger or the daily reset can run
// during the wait.
func (s *Scheduler) Tick(ctx context.Context) {
	state, err := s.store.GetRunState(ctx)
	if err != nil {
		s.log.Error("get run state", "error", err)
		s.recordRun(ctx, model.StatusError)
		return
	}
	if !state.Active {
		s.log.Debug("monitoring paused, skipping cycle")
		return
	}

	if state.OffsetSeconds > 0 {
		s.log.Debug("waiting adaptive offset", "seconds", state.OffsetSeconds)
		if !s.wait(ctx, time.Duration(state.OffsetSeconds)*time.Second) {
			return
		}
	}

	if !s.mu.TryLock() {
		s.log.Warn("previous cycle still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	// The pause flag may have flipped during the offset wait.
	state, err = s.store.GetRunState(ctx)
	if err != nil {
		s.log.Error("get run state", "error", err)
		s.recordRun(ctx, model.StatusError)
		return
	}
	if !state.Active {
		s.log.Debug("monitoring paused, skipping cycle")
		return
	}

	s.runCycle(ctx)
}

// RunNow executes one cycle synchronously, bypassing the pause gate. It is
// the manual refresh entry point. Returns an error if a cycle is already in
// flight or the cycle itself fails.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.mu.TryLock() {
		return fmt.Errorf("a cycle is already running")
	}
	defer s.mu.Unlock()
	return s.runCycle(ctx)
}

// DailyReset clears the cached posts of page sources, forces monitoring
// active and runs one cycle immediately. Feed source caches are untouched.
// The reset fires once a day and is never shed: an in-flight cycle is
// waited for, not skipped.
func (s *Scheduler) DailyReset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("daily reset")
	if err := s.store.DeletePostsByKind(ctx, model.KindPage); err != nil {
		s.log.Error("clear page posts", "error", err)
	}
	if err := s.store.SetActive(ctx, true); err != nil {
		s.log.Error("force active", "error", err)
	}
	s.runCycle(ctx)
}

// runCycle invokes the runner and records the outcome in run state. Cycle
// failures are contained here; they never stop future ticks.
func (s *Scheduler) runCycle(ctx context.Context) error {
	err := s.runner.RunCycle(ctx)
	status := model.StatusSuccess
	if err != nil {
		status = model.StatusError
		s.log.Error("cycle failed", "error", err)
	}
	s.recordRun(ctx, status)
	return err
}

func (s *Scheduler) recordRun(ctx context.Context, status string) {
	if err := s.store.SetLastRun(ctx, s.now().UTC(), status); err != nil {
		s.log.Error("record last run", "error", err)
	}
}

// wait sleeps for d, returning false if ctx was cancelled first.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextReset returns the next occurrence of the reset wall-clock time in the
// configured timezone.
func (s *Scheduler) nextReset(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.resetHour, s.resetMin, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
