package domain

import (
	"strings"
	"testing"
	"time"
)

func testSettings() NudgeSettings {
	return NudgeSettings{
		Enabled:               true,
		StaleLeadWarningDays:  5,
		StaleLeadCriticalDays: 10,
		DealStalledDays:       14,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// TestStaleLeadPriorityThresholds verifies warning/critical bucket assignment.
func TestStaleLeadPriorityThresholds(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name         string
		age          time.Duration
		wantNudge    bool
		wantPriority Priority
	}{
		{name: "fresh", age: 2 * 24 * time.Hour, wantNudge: false},
		{name: "warning", age: 6 * 24 * time.Hour, wantNudge: true, wantPriority: PriorityMedium},
		{name: "warning boundary", age: 5 * 24 * time.Hour, wantNudge: true, wantPriority: PriorityMedium},
		{name: "critical boundary", age: 10 * 24 * time.Hour, wantNudge: true, wantPriority: PriorityHigh},
		{name: "critical", age: 11 * 24 * time.Hour, wantNudge: true, wantPriority: PriorityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lead := Lead{ID: "l1", Name: "Ada", Status: "active", UpdatedAt: now.Add(-tc.age)}
			got := EvaluateLeads([]Lead{lead}, testSettings(), now)
			if !tc.wantNudge {
				if len(got) != 0 {
					t.Fatalf("expected no nudge, got %#v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 nudge, got %d", len(got))
			}
			if got[0].Priority != tc.wantPriority {
				t.Fatalf("priority = %q, want %q", got[0].Priority, tc.wantPriority)
			}
			if got[0].Type != NudgeTypeStaleLead || got[0].ID != "stale-lead-l1" {
				t.Fatalf("unexpected nudge identity %q/%q", got[0].Type, got[0].ID)
			}
		})
	}
}

// TestStaleLeadTouchOverridesStaleTimestamp verifies a newer touch record wins over the lead's own field.
func TestStaleLeadTouchOverridesStaleTimestamp(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	lead := Lead{
		ID:        "l1",
		Status:    "follow-up",
		UpdatedAt: now.Add(-10 * 24 * time.Hour),
		LastTouch: &Touch{LeadID: "l1", CreatedAt: now.Add(-2 * 24 * time.Hour)},
	}
	if got := EvaluateLeads([]Lead{lead}, testSettings(), now); len(got) != 0 {
		t.Fatalf("expected touch recency to suppress nudge, got %#v", got)
	}

	lead.LastContactedAt = timePtr(now.Add(-12 * 24 * time.Hour))
	if got := EvaluateLeads([]Lead{lead}, testSettings(), now); len(got) != 0 {
		t.Fatalf("expected touch newer than last_contacted_at to win, got %#v", got)
	}
}

// TestStaleLeadTitles verifies the never-contacted and contacted title forms.
func TestStaleLeadTitles(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	never := Lead{ID: "l1", Status: "new"}
	n, ok := StaleLeadNudge(never, testSettings(), now)
	if !ok {
		t.Fatal("expected nudge for lead without timestamps")
	}
	if n.Title != "Never contacted" {
		t.Fatalf("title = %q, want Never contacted", n.Title)
	}
	if n.OverdueDays() != NeverContactedDays || n.Priority != PriorityHigh {
		t.Fatalf("unexpected sentinel nudge %#v", n)
	}

	contacted := Lead{
		ID:              "l2",
		Status:          "Active",
		LastContactedAt: timePtr(now.Add(-7 * 24 * time.Hour)),
		UpdatedAt:       now,
		LastTouch:       &Touch{LeadID: "l2", CreatedAt: now.Add(-8 * 24 * time.Hour), Responded: true},
	}
	n, ok = StaleLeadNudge(contacted, testSettings(), now)
	if !ok {
		t.Fatal("expected nudge for contacted lead")
	}
	if n.Title != "No contact in 7 days" {
		t.Fatalf("title = %q, want No contact in 7 days", n.Title)
	}
	if n.LastTouchResponded == nil || !*n.LastTouchResponded {
		t.Fatalf("expected responded metadata, got %#v", n.LastTouchResponded)
	}
}

// TestStaleLeadIgnoresInactiveStatuses verifies only candidate statuses are evaluated.
func TestStaleLeadIgnoresInactiveStatuses(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	lead := Lead{ID: "l1", Status: "closed", UpdatedAt: now.Add(-40 * 24 * time.Hour)}
	if got := EvaluateLeads([]Lead{lead}, testSettings(), now); len(got) != 0 {
		t.Fatalf("expected no nudge for closed lead, got %#v", got)
	}
}

// TestDealActionRule verifies overdue and due-soon classification by calendar day.
func TestDealActionRule(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name         string
		due          Date
		wantNudge    bool
		wantType     NudgeType
		wantPriority Priority
		wantOverdue  int
	}{
		{name: "overdue", due: Date{2026, time.October, 13}, wantNudge: true, wantType: NudgeTypeActionOverdue, wantPriority: PriorityHigh, wantOverdue: 3},
		{name: "today", due: Date{2026, time.October, 16}, wantNudge: true, wantType: NudgeTypeActionDueSoon, wantPriority: PriorityHigh},
		{name: "tomorrow", due: Date{2026, time.October, 17}, wantNudge: true, wantType: NudgeTypeActionDueSoon, wantPriority: PriorityMedium},
		{name: "later", due: Date{2026, time.October, 18}, wantNudge: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due := tc.due
			deal := Deal{ID: "d1", Stage: "negotiation", NextAction: "Call seller", NextActionDue: &due, UpdatedAt: now}
			got := EvaluateDeals([]Deal{deal}, testSettings(), now, time.UTC)
			if !tc.wantNudge {
				if len(got) != 0 {
					t.Fatalf("expected no nudge, got %#v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected exactly 1 nudge, got %d", len(got))
			}
			n := got[0]
			if n.Type != tc.wantType || n.Priority != tc.wantPriority {
				t.Fatalf("got %q/%q, want %q/%q", n.Type, n.Priority, tc.wantType, tc.wantPriority)
			}
			if tc.wantType == NudgeTypeActionOverdue && n.OverdueDays() < tc.wantOverdue {
				t.Fatalf("days overdue = %d, want >= %d", n.OverdueDays(), tc.wantOverdue)
			}
		})
	}
}

// TestDealActionUsesLocalCalendarDay verifies due dates compare against the local date, not UTC.
func TestDealActionUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	// 2026-10-17 03:00 UTC is still 2026-10-16 locally.
	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	due := Date{2026, time.October, 16}
	deal := Deal{ID: "d1", Stage: "open", NextActionDue: &due, UpdatedAt: now}
	n, ok := DealActionNudge(deal, now, loc)
	if !ok {
		t.Fatal("expected due-today nudge")
	}
	if n.Type != NudgeTypeActionDueSoon || n.Priority != PriorityHigh {
		t.Fatalf("got %q/%q, want due-soon/high", n.Type, n.Priority)
	}
}

// TestDealStalledIsIndependentOfActionRule verifies one deal may emit both nudges.
func TestDealStalledIsIndependentOfActionRule(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	due := Date{2026, time.October, 10}
	deal := Deal{
		ID:            "d1",
		Stage:         "under_contract",
		NextActionDue: &due,
		UpdatedAt:     now.Add(-20 * 24 * time.Hour),
		Property:      &DealProperty{AddressLine1: "1 Main St", City: "Austin", State: "TX"},
	}
	got := EvaluateDeals([]Deal{deal}, testSettings(), now, time.UTC)
	if len(got) != 2 {
		t.Fatalf("expected action + stalled nudges, got %d", len(got))
	}
	if got[0].Type != NudgeTypeActionOverdue || got[1].Type != NudgeTypeDealStalled {
		t.Fatalf("unexpected types %q, %q", got[0].Type, got[1].Type)
	}
	if got[1].Priority != PriorityMedium || got[1].OverdueDays() != 20 {
		t.Fatalf("unexpected stalled nudge %#v", got[1])
	}
	if got[1].PropertyAddress != "1 Main St, Austin, TX" {
		t.Fatalf("property address = %q", got[1].PropertyAddress)
	}
}

// TestClosedDealsEmitNothing verifies closed stages are skipped by both deal rules.
func TestClosedDealsEmitNothing(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	due := Date{2026, time.October, 1}
	for _, stage := range []string{"closed_won", "closed_lost"} {
		deal := Deal{ID: "d1", Stage: stage, NextActionDue: &due, UpdatedAt: now.Add(-60 * 24 * time.Hour)}
		if got := EvaluateDeals([]Deal{deal}, testSettings(), now, time.UTC); len(got) != 0 {
			t.Fatalf("stage %s: expected no nudges, got %#v", stage, got)
		}
	}
}

// TestCapturePendingRule verifies the single aggregate capture nudge.
func TestCapturePendingRule(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	items := func(n int) []CaptureItem {
		out := []CaptureItem{{ID: "done", Status: "processed", CreatedAt: now}}
		for i := 0; i < n; i++ {
			status := "pending"
			if i%2 == 1 {
				status = "ready"
			}
			out = append(out, CaptureItem{ID: string(rune('a' + i)), Status: status, CreatedAt: now.Add(-time.Duration(i) * time.Hour)})
		}
		return out
	}

	if got := EvaluateCaptures(items(0), now); len(got) != 0 {
		t.Fatalf("expected no nudge for empty queue, got %#v", got)
	}

	got := EvaluateCaptures(items(3), now)
	if len(got) != 1 {
		t.Fatalf("expected 1 nudge, got %d", len(got))
	}
	if !strings.Contains(got[0].Title, "3 items") {
		t.Fatalf("title = %q, want to contain 3 items", got[0].Title)
	}
	if got[0].Priority != PriorityLow || got[0].EntityID != CaptureQueueEntityID {
		t.Fatalf("unexpected capture nudge %#v", got[0])
	}
	if !got[0].CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want newest item %v", got[0].CreatedAt, now)
	}

	got = EvaluateCaptures(items(7), now)
	if len(got) != 1 || got[0].Priority != PriorityMedium {
		t.Fatalf("expected one medium nudge, got %#v", got)
	}
}

// TestEvaluateAllRunsEveryFamily verifies rule families are combined without interaction.
func TestEvaluateAllRunsEveryFamily(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	due := Date{2026, time.October, 16}
	records := Records{
		Leads:    []Lead{{ID: "l1", Status: "active", UpdatedAt: now.Add(-30 * 24 * time.Hour)}},
		Deals:    []Deal{{ID: "d1", Stage: "open", NextActionDue: &due, UpdatedAt: now}},
		Captures: []CaptureItem{{ID: "c1", Status: "pending", CreatedAt: now}},
	}
	got := EvaluateAll(records, testSettings(), now, time.UTC)
	if len(got) != 3 {
		t.Fatalf("expected 3 nudges, got %d", len(got))
	}
	want := []NudgeType{NudgeTypeStaleLead, NudgeTypeActionDueSoon, NudgeTypeCapturePending}
	for i, n := range got {
		if n.Type != want[i] {
			t.Fatalf("nudge[%d] type = %q, want %q", i, n.Type, want[i])
		}
	}
}
