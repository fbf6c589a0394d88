package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hylla/nudger/internal/domain"
)

func newTestController(src *fakeSource, kv *memKV) *Controller {
	var seq atomic.Int32
	return NewController(newTestEngine(src, kv, domain.DefaultNudgeSettings()), ControllerConfig{
		LeadsInterval:    10 * time.Millisecond,
		DealsInterval:    10 * time.Millisecond,
		CapturesInterval: 5 * time.Millisecond,
		FetchTimeout:     time.Second,
		IDGen: func() string {
			return fmt.Sprintf("cycle-%d", seq.Add(1))
		},
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestControllerRefreshPublishes(t *testing.T) {
	ctx := context.Background()
	c := newTestController(sampleSource(), newMemKV())
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	initial := <-updates
	if initial.CycleID != "" || len(initial.Nudges) != 0 {
		t.Fatalf("unexpected initial view %#v", initial)
	}

	view, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if view.CycleID == "" || view.Summary.Total != 3 || view.IsLoading {
		t.Fatalf("unexpected refreshed view %#v", view)
	}
	if got := <-updates; got.CycleID != view.CycleID {
		t.Fatalf("subscriber saw cycle %q, want latest %q", got.CycleID, view.CycleID)
	}
	if c.Current().CycleID != view.CycleID {
		t.Fatal("Current() does not match published view")
	}
}

func TestControllerDismissRecomputesWithoutRefetch(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	kv := newMemKV()
	c := newTestController(src, kv)
	if _, err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	calls := src.calls.Load()

	view, err := c.Dismiss(ctx, "stale-lead-l1")
	if err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if src.calls.Load() != calls {
		t.Fatalf("expected no refetch on dismiss, calls %d -> %d", calls, src.calls.Load())
	}
	if view.Summary.Total != 2 {
		t.Fatalf("expected dismissed nudge removed, got %#v", view.Summary)
	}
	entries, _ := NewSnoozeStore(kv, nil).Entries(ctx)
	if len(entries) != 1 || entries[0].Expiry().Before(fixedNow.Add(50*365*24*time.Hour)) {
		t.Fatalf("expected long-lived dismiss entry, got %#v", entries)
	}

	view, err = c.Unsnooze(ctx, "stale-lead-l1")
	if err != nil {
		t.Fatalf("Unsnooze() error = %v", err)
	}
	if view.Summary.Total != 3 {
		t.Fatalf("expected nudge restored, got %#v", view.Summary)
	}
}

func TestControllerFailedSourceKeepsOthers(t *testing.T) {
	src := sampleSource()
	src.leadsErr = errSourceDown
	c := newTestController(src, newMemKV())
	view, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if view.Summary.Total != 2 {
		t.Fatalf("expected deal and capture nudges, got %#v", view.Summary)
	}
}

func TestControllerCancelledCycleNotPublished(t *testing.T) {
	src := sampleSource()
	gate := make(chan struct{})
	src.setGate(gate)
	c := newTestController(src, newMemKV())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx)
		done <- err
	}()
	waitFor(t, func() bool { return c.inflight[SourceLeads].Load() })
	if !c.Current().IsLoading {
		t.Fatal("expected loading view while fetch in flight")
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if view := c.Current(); view.CycleID != "" || len(view.Nudges) != 0 {
		t.Fatalf("cancelled cycle was published: %#v", view)
	}
	close(gate)
	waitFor(t, func() bool { return !c.inflight[SourceLeads].Load() })
	if view := c.Current(); view.CycleID != "" || len(view.Nudges) != 0 {
		t.Fatalf("shared fetch published after its only caller cancelled: %#v", view)
	}
}

func TestControllerCancelledCallerKeepsSharedFetchForOthers(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	c := newTestController(src, newMemKV())
	if view, err := c.Refresh(ctx); err != nil || view.Summary.Total != 3 {
		t.Fatalf("Refresh() = %#v, %v; want total 3", view.Summary, err)
	}

	gate := make(chan struct{})
	src.setGate(gate)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancelled := make(chan error, 1)
	go func() {
		_, err := c.Refresh(cancelCtx)
		cancelled <- err
	}()
	waitFor(t, func() bool { return src.waiting.Load() == 1 })

	type result struct {
		view View
		err  error
	}
	joined := make(chan result, 1)
	go func() {
		view, err := c.Refresh(ctx)
		joined <- result{view, err}
	}()
	waitFor(t, func() bool { return c.loading.Load() == 2 })
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-cancelled; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(gate)

	got := <-joined
	if got.err != nil {
		t.Fatalf("Refresh() error = %v", got.err)
	}
	if got.view.Summary.Total != 3 {
		t.Fatalf("live caller lost lead nudges: got total %d, want 3", got.view.Summary.Total)
	}
	if total := c.Current().Summary.Total; total != 3 {
		t.Fatalf("Current() total = %d, want 3", total)
	}
	if calls := src.calls.Load(); calls != 2 {
		t.Fatalf("expected both callers to share one lead fetch, calls = %d", calls)
	}
}

func TestControllerSnoozeNotUndoneByOlderRecompute(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	c := newTestController(sampleSource(), kv)
	if view, err := c.Refresh(ctx); err != nil || view.Summary.Total != 3 {
		t.Fatalf("Refresh() = %#v, %v; want total 3", view.Summary, err)
	}

	entered, release := kv.stallNextGet()
	older := make(chan View, 1)
	go func() {
		view, err := c.SettingsChanged(ctx)
		if err != nil {
			t.Errorf("SettingsChanged() error = %v", err)
		}
		older <- view
	}()
	<-entered

	view, err := c.Snooze(ctx, "stale-lead-l1", time.Hour)
	if err != nil {
		t.Fatalf("Snooze() error = %v", err)
	}
	if view.Summary.Total != 2 {
		t.Fatalf("Snooze() total = %d, want 2", view.Summary.Total)
	}
	close(release)

	if got := <-older; got.Summary.Total != 2 {
		t.Fatalf("SettingsChanged() returned total %d, want the newer view with 2", got.Summary.Total)
	}
	current := c.Current()
	if current.Summary.Total != 2 {
		t.Fatalf("snoozed nudge republished; Current() total = %d, want 2", current.Summary.Total)
	}
	for _, n := range current.Nudges {
		if n.ID == "stale-lead-l1" {
			t.Fatal("snoozed nudge present in current view")
		}
	}
}

func TestControllerTickIgnoredWhileFetchInFlight(t *testing.T) {
	src := sampleSource()
	c := NewController(newTestEngine(src, newMemKV(), domain.DefaultNudgeSettings()), ControllerConfig{
		LeadsInterval:    5 * time.Millisecond,
		DealsInterval:    time.Hour,
		CapturesInterval: time.Hour,
		FetchTimeout:     5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	waitFor(t, func() bool { return c.Current().Summary.Total == 3 })

	first := make(chan struct{})
	src.setGate(first)
	waitFor(t, func() bool { return src.waiting.Load() == 1 })
	base := src.calls.Load()

	// many ticks elapse while the gated fetch is outstanding
	time.Sleep(60 * time.Millisecond)
	if calls := src.calls.Load(); calls != base {
		t.Fatalf("ticks started fetches while one was in flight: calls %d -> %d", base, calls)
	}

	second := make(chan struct{})
	src.setGate(second)
	close(first)
	waitFor(t, func() bool { return src.calls.Load() == base+1 && src.waiting.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if calls := src.calls.Load(); calls != base+1 {
		t.Fatalf("ignored ticks were queued: calls %d, want %d", calls, base+1)
	}

	cancel()
	close(second)
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestControllerDisabledSkipsFetch(t *testing.T) {
	src := sampleSource()
	settings := domain.DefaultNudgeSettings()
	settings.Enabled = false
	c := NewController(newTestEngine(src, newMemKV(), settings), ControllerConfig{})
	view, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if view.Enabled || len(view.Nudges) != 0 || src.calls.Load() != 0 {
		t.Fatalf("expected disabled empty view without fetch, got %#v calls=%d", view, src.calls.Load())
	}
}

func TestControllerRunLifecycle(t *testing.T) {
	src := sampleSource()
	c := newTestController(src, newMemKV())
	updates, _ := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// periodic ticks refetch beyond the initial cycle
	waitFor(t, func() bool { return src.calls.Load() >= 3 })
	if err := c.Run(ctx); !errors.Is(err, ErrControllerRunning) {
		t.Fatalf("expected ErrControllerRunning, got %v", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for range updates {
	}
	if _, err := c.Snooze(context.Background(), "stale-lead-l1", time.Hour); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("expected ErrControllerClosed, got %v", err)
	}
	if err := c.Run(context.Background()); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("expected ErrControllerClosed on restart, got %v", err)
	}
}
