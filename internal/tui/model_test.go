package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
)

type fakeService struct {
	views     chan app.View
	unsubbed  bool
	refreshes int
	snoozed   map[string]time.Duration
	dismissed []string
	err       error
}

func newFakeService() *fakeService {
	return &fakeService{views: make(chan app.View, 4), snoozed: map[string]time.Duration{}}
}

func (f *fakeService) Subscribe() (<-chan app.View, func()) {
	return f.views, func() { f.unsubbed = true }
}

func (f *fakeService) Refresh(context.Context) (app.View, error) {
	f.refreshes++
	return app.View{}, f.err
}

func (f *fakeService) Snooze(_ context.Context, id string, d time.Duration) (app.View, error) {
	f.snoozed[id] = d
	return app.View{}, f.err
}

func (f *fakeService) Dismiss(_ context.Context, id string) (app.View, error) {
	f.dismissed = append(f.dismissed, id)
	return app.View{}, f.err
}

var testNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func sampleView() app.View {
	days := 20
	due := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	nudges := []domain.Nudge{
		{ID: "stale-lead-l1", Type: domain.NudgeTypeStaleLead, Priority: domain.PriorityHigh, Title: "No contact in 20 days", Subtitle: "Ada", DaysOverdue: &days},
		{ID: "action-overdue-d1", Type: domain.NudgeTypeActionOverdue, Priority: domain.PriorityHigh, Title: "Send docs", Subtitle: "12 Elm St", DueDate: &due},
		{ID: "capture-pending-queue", Type: domain.NudgeTypeCapturePending, Priority: domain.PriorityLow, Title: "1 item pending review"},
	}
	return app.View{Nudges: nudges, Summary: domain.Summarize(nudges), Enabled: true, CycleID: "c1"}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out, cmd
}

// runCmd executes one non-blocking command and feeds its message back into the model.
func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected cmd")
	}
	out, _ := update(t, m, cmd())
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func readyModel(t *testing.T, svc *fakeService) Model {
	t.Helper()
	m := NewModel(svc, WithClock(func() time.Time { return testNow }), WithLocation(time.UTC))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	svc.views <- sampleView()
	m = runCmd(t, m, m.Init())
	return m
}

func TestModelRendersPublishedView(t *testing.T) {
	svc := newFakeService()
	m := NewModel(svc)
	if v := m.View(); !v.AltScreen || m.render() != "loading..." {
		t.Fatalf("expected alt-screen loading view, got %q", m.render())
	}

	m = readyModel(t, svc)
	content := m.render()
	for _, want := range []string{"nudger", "3 total", "2 high", "No contact in 20 days", "Send docs", "due Oct 14 (2d ago)", "snooze: tomorrow"} {
		if !strings.Contains(content, want) {
			t.Fatalf("view missing %q:\n%s", want, content)
		}
	}
	if m.status != "ready" {
		t.Fatalf("status = %q, want ready", m.status)
	}
}

func TestModelEmptyAndDisabledStates(t *testing.T) {
	svc := newFakeService()
	m := readyModel(t, svc)

	m, _ = update(t, m, viewMsg{view: app.View{Enabled: true}})
	if !strings.Contains(m.render(), "All caught up.") {
		t.Fatal("expected empty-state message")
	}
	m, _ = update(t, m, viewMsg{view: app.View{Enabled: false}})
	if !strings.Contains(m.render(), "Nudges are turned off.") {
		t.Fatal("expected disabled message")
	}
	m, _ = update(t, m, viewMsg{view: app.View{Enabled: true, IsLoading: true}})
	if !strings.Contains(m.render(), "Loading nudges...") || m.status != "refreshing..." {
		t.Fatalf("expected loading state, status = %q", m.status)
	}
}

func TestModelNavigationKeepsSelectionAcrossViews(t *testing.T) {
	svc := newFakeService()
	m := readyModel(t, svc)

	m, _ = update(t, m, keyRune('j'))
	m, _ = update(t, m, keyRune('j'))
	m, _ = update(t, m, keyRune('j'))
	if m.selected != 2 {
		t.Fatalf("selected = %d, want 2 (clamped)", m.selected)
	}
	m, _ = update(t, m, keyRune('k'))
	if n, _ := m.selectedNudge(); n.ID != "action-overdue-d1" {
		t.Fatalf("selected %q, want action-overdue-d1", n.ID)
	}

	next := sampleView()
	next.Nudges = next.Nudges[1:]
	m, _ = update(t, m, viewMsg{view: next})
	if n, _ := m.selectedNudge(); n.ID != "action-overdue-d1" {
		t.Fatalf("selection moved to %q after republish", n.ID)
	}

	m, _ = update(t, m, keyRune('G'))
	if m.selected != 1 {
		t.Fatalf("selected = %d after G", m.selected)
	}
	m, _ = update(t, m, keyRune('g'))
	if m.selected != 0 {
		t.Fatalf("selected = %d after g", m.selected)
	}
}

func TestModelSnoozeDismissRefresh(t *testing.T) {
	svc := newFakeService()
	m := readyModel(t, svc)

	m, cmd := update(t, m, keyRune('s'))
	m = runCmd(t, m, cmd)
	if got := svc.snoozed["stale-lead-l1"]; got != 24*time.Hour {
		t.Fatalf("snooze duration = %v, want 24h", got)
	}
	if !strings.Contains(m.status, "snoozed stale-lead-l1") {
		t.Fatalf("status = %q", m.status)
	}

	m, _ = update(t, m, keyRune('p'))
	if m.presets[m.preset].Name != "next-week" {
		t.Fatalf("preset = %q, want next-week", m.presets[m.preset].Name)
	}
	m, _ = update(t, m, keyRune('j'))
	m, cmd = update(t, m, keyRune('s'))
	m = runCmd(t, m, cmd)
	if got := svc.snoozed["action-overdue-d1"]; got != 7*24*time.Hour {
		t.Fatalf("snooze duration = %v, want one week", got)
	}

	m, cmd = update(t, m, keyRune('d'))
	m = runCmd(t, m, cmd)
	if len(svc.dismissed) != 1 || svc.dismissed[0] != "action-overdue-d1" {
		t.Fatalf("dismissed = %#v", svc.dismissed)
	}

	m, cmd = update(t, m, keyRune('r'))
	m = runCmd(t, m, cmd)
	if svc.refreshes != 1 || m.status != "refreshed" {
		t.Fatalf("refreshes = %d, status = %q", svc.refreshes, m.status)
	}

	svc.err = errors.New("store offline")
	m, cmd = update(t, m, keyRune('r'))
	m = runCmd(t, m, cmd)
	if m.err == nil || !strings.Contains(m.render(), "store offline") {
		t.Fatal("expected action error rendered")
	}
}

func TestModelActionsIgnoredWithoutNudges(t *testing.T) {
	svc := newFakeService()
	m := readyModel(t, svc)
	m, _ = update(t, m, viewMsg{view: app.View{Enabled: true}})
	if _, cmd := update(t, m, keyRune('s')); cmd != nil {
		t.Fatal("expected no snooze cmd on empty list")
	}
	if _, cmd := update(t, m, keyRune('d')); cmd != nil {
		t.Fatal("expected no dismiss cmd on empty list")
	}
}

func TestModelQuitAndClosedSubscription(t *testing.T) {
	svc := newFakeService()
	m := readyModel(t, svc)

	_, cmd := update(t, m, keyRune('q'))
	if cmd == nil || !svc.unsubbed {
		t.Fatal("expected quit cmd and unsubscribe")
	}

	svc = newFakeService()
	m = readyModel(t, svc)
	close(svc.views)
	_, cmd = update(t, m, waitForView(svc.views)())
	if cmd == nil {
		t.Fatal("expected quit when controller stops publishing")
	}
}

func TestModelHelpToggleAndOptions(t *testing.T) {
	svc := newFakeService()
	m := NewModel(svc, WithSnoozePreset("1h"), WithSnoozePreset("bogus"), nil)
	if m.presets[m.preset].Name != "1h" {
		t.Fatalf("preset = %q, want 1h", m.presets[m.preset].Name)
	}
	m, _ = update(t, m, keyRune('?'))
	if !m.help.ShowAll {
		t.Fatal("expected full help after ?")
	}
}

// TestHelpers verifies clamp, fitLines, and truncate edge cases.
func TestHelpers(t *testing.T) {
	if clamp(5, 0, -1) != 0 || clamp(-1, 0, 3) != 0 || clamp(9, 0, 3) != 3 {
		t.Fatal("unexpected clamp results")
	}
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("fitLines() = %q", got)
	}
	if got := fitLines("a", 3); got != "a\n\n" {
		t.Fatalf("fitLines() = %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate() = %q", got)
	}
}
