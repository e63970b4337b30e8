package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"pulse_bot/internal/config"
	"pulse_bot/internal/model"
	"pulse_bot/internal/storage"
)

type fakeRunner struct {
	calls   atomic.Int64
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) RunCycle(context.Context) error {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		PollInterval:  time.Hour,
		ResetTime:     "03:00",
		ResetTimezone: "UTC",
	}
}

func newTestScheduler(t *testing.T, runner CycleRunner) (*Scheduler, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s, err := New(store, runner, testConfig(), testLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s, store
}

func TestNewRejectsBadConfig(t *testing.T) {
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{
			name: "invalid reset time",
			cfg:  &config.Config{PollInterval: time.Hour, ResetTime: "25:99", ResetTimezone: "UTC"},
		},
		{
			name: "unknown timezone",
			cfg:  &config.Config{PollInterval: time.Hour, ResetTime: "03:00", ResetTimezone: "Atlantis/Capital"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(store, &fakeRunner{}, tt.cfg, testLogger()); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestTickPausedIsNoOp(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	// Fresh databases start paused.
	s.Tick(ctx)

	if got := runner.calls.Load(); got != 0 {
		t.Errorf("paused tick ran %d cycles, want 0", got)
	}
	state, err := store.GetRunState(ctx)
	if err != nil {
		t.Fatalf("get run state: %v", err)
	}
	if state.LastRunAt != nil {
		t.Error("paused tick must not record a run")
	}
}

func TestTickActiveRunsAndRecords(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	if err := store.SetActive(ctx, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	s.Tick(ctx)

	if got := runner.calls.Load(); got != 1 {
		t.Fatalf("active tick ran %d cycles, want 1", got)
	}
	state, err := store.GetRunState(ctx)
	if err != nil {
		t.Fatalf("get run state: %v", err)
	}
	if state.LastStatus != model.StatusSuccess {
		t.Errorf("last status = %q, want %q", state.LastStatus, model.StatusSuccess)
	}
	if state.LastRunAt == nil {
		t.Error("expected last run timestamp to be recorded")
	}
}

func TestTickRecordsCycleFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("upstream broke")}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	if err := store.SetActive(ctx, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	s.Tick(ctx)

	state, err := store.GetRunState(ctx)
	if err != nil {
		t.Fatalf("get run state: %v", err)
	}
	if state.LastStatus != model.StatusError {
		t.Errorf("last status = %q, want %q", state.LastStatus, model.StatusError)
	}
}

func TestTickOffsetWaitHonoursCancel(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)

	if err := store.SetActive(context.Background(), true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := store.SetOffset(context.Background(), 60); err != nil {
		t.Fatalf("set offset: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Tick(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not return after context cancellation")
	}
	if got := runner.calls.Load(); got != 0 {
		t.Errorf("cancelled offset wait still ran %d cycles, want 0", got)
	}
}

func TestRunNowBypassesPause(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	// Still paused: a manual trigger must run anyway.
	if err := s.RunNow(ctx); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("manual trigger ran %d cycles, want 1", got)
	}

	state, err := store.GetRunState(ctx)
	if err != nil {
		t.Fatalf("get run state: %v", err)
	}
	if state.Active {
		t.Error("manual trigger must not flip the pause flag")
	}
}

func TestRunNowReportsCycleError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	s, _ := newTestScheduler(t, runner)

	if err := s.RunNow(context.Background()); err == nil {
		t.Error("expected the cycle error to propagate")
	}
}

func TestRunNowRejectsConcurrentCycle(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, _ := newTestScheduler(t, runner)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.RunNow(ctx) }()
	<-runner.started

	if err := s.RunNow(ctx); err == nil {
		t.Error("expected second trigger to be rejected while a cycle runs")
	}

	close(runner.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first run now: %v", err)
	}
}

func TestDailyResetRunsDuringOffsetWait(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	page := model.Source{Kind: model.KindPage, ProfileID: "p1", Name: "Page"}
	if err := store.CreateSource(ctx, &page); err != nil {
		t.Fatalf("create page source: %v", err)
	}
	if _, err := store.UpsertPost(ctx, &model.Post{ExternalID: "a", SourceID: page.ID, PostedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("upsert post: %v", err)
	}
	if err := store.SetActive(ctx, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := store.SetOffset(ctx, 2); err != nil {
		t.Fatalf("set offset: %v", err)
	}

	tickDone := make(chan struct{})
	go func() {
		s.Tick(ctx)
		close(tickDone)
	}()
	time.Sleep(100 * time.Millisecond)

	// The tick is waiting out its offset; the reset must not be shed.
	resetDone := make(chan struct{})
	go func() {
		s.DailyReset(ctx)
		close(resetDone)
	}()

	select {
	case <-resetDone:
	case <-time.After(time.Second):
		t.Fatal("daily reset did not run while a tick waited out its offset")
	}

	posts, err := store.ListPosts(ctx, page.ID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected page cache cleared, %d posts remain", len(posts))
	}
	if got := runner.calls.Load(); got < 1 {
		t.Error("daily reset did not run a cycle")
	}

	select {
	case <-tickDone:
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not finish")
	}
}

func TestDailyResetWaitsForRunningCycle(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.RunNow(ctx) }()
	<-runner.started

	resetDone := make(chan struct{})
	go func() {
		s.DailyReset(ctx)
		close(resetDone)
	}()

	select {
	case <-resetDone:
		t.Fatal("daily reset finished while a cycle held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-resetDone:
	case <-time.After(2 * time.Second):
		t.Fatal("daily reset never ran after the cycle finished")
	}
	if err := <-firstDone; err != nil {
		t.Fatalf("first run now: %v", err)
	}

	if got := runner.calls.Load(); got != 2 {
		t.Errorf("ran %d cycles, want 2 (manual + reset)", got)
	}
	state, err := store.GetRunState(ctx)
	if err != nil {
		t.Fatalf("get run state: %v", err)
	}
	if !state.Active {
		t.Error("daily reset must force monitoring active")
	}
}

func TestRunNowDuringOffsetWait(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	if err := store.SetActive(ctx, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := store.SetOffset(ctx, 2); err != nil {
		t.Fatalf("set offset: %v", err)
	}

	tickDone := make(chan struct{})
	go func() {
		s.Tick(ctx)
		close(tickDone)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := s.RunNow(ctx); err != nil {
		t.Errorf("manual trigger during offset wait: %v", err)
	}

	select {
	case <-tickDone:
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not finish")
	}
}

func TestTickRechecksPauseAfterOffsetWait(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	if err := store.SetActive(ctx, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := store.SetOffset(ctx, 1); err != nil {
		t.Fatalf("set offset: %v", err)
	}

	tickDone := make(chan struct{})
	go func() {
		s.Tick(ctx)
		close(tickDone)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := store.SetActive(ctx, false); err != nil {
		t.Fatalf("pause: %v", err)
	}

	select {
	case <-tickDone:
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not finish")
	}
	if got := runner.calls.Load(); got != 0 {
		t.Errorf("tick ran %d cycles after pausing mid-wait, want 0", got)
	}
}

func TestDailyReset(t *testing.T) {
	runner := &fakeRunner{}
	s, store := newTestScheduler(t, runner)
	ctx := context.Background()

	page := model.Source{Kind: model.KindPage, ProfileID: "p1", Name: "Page"}
	feed := model.Source{Kind: model.KindFeed, ProfileID: "https://example.com/feed", Name: "Feed"}
	if err := store.CreateSource(ctx, &page); err != nil {
		t.Fatalf("create page source: %v", err)
	}
	if err := store.CreateSource(ctx, &feed); err != nil {
		t.Fatalf("create feed source: %v", err)
	}
	for _, post := range []model.Post{
		{ExternalID: "a", SourceID: page.ID, PostedAt: time.Now().UTC()},
		{ExternalID: "b", SourceID: feed.ID, PostedAt: time.Now().UTC()},
	} {
		if _, err := store.UpsertPost(ctx, &post); err != nil {
			t.Fatalf("upsert post %s: %v", post.ExternalID, err)
		}
	}

	s.DailyReset(ctx)

	pagePosts, err := store.ListPosts(ctx, page.ID)
	if err != nil {
		t.Fatalf("list page posts: %v", err)
	}
	if len(pagePosts) != 0 {
		t.Errorf("expected page cache cleared, %d posts remain", len(pagePosts))
	}

	feedPosts, err := store.ListPosts(ctx, feed.ID)
	if err != nil {
		t.Fatalf("list feed posts: %v", err)
	}
	if len(feedPosts) != 1 {
		t.Errorf("feed cache must survive the reset, got %d posts", len(feedPosts))
	}

	state, err := store.GetRunState(ctx)
	if err != nil {
		t.Fatalf("get run state: %v", err)
	}
	if !state.Active {
		t.Error("daily reset must force monitoring active")
	}
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("daily reset ran %d cycles, want 1", got)
	}
}

func TestNextReset(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeRunner{})

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "before reset time",
			from: time.Date(2025, 1, 15, 1, 30, 0, 0, time.UTC),
			want: time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "after reset time rolls to next day",
			from: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 16, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at reset time rolls to next day",
			from: time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 16, 3, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.nextReset(tt.from); !got.Equal(tt.want) {
				t.Errorf("nextReset(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeRunner{})
	s.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
}
