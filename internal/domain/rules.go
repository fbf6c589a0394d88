package domain

import (
	"fmt"
	"strings"
	"time"
)

// NeverContactedDays is the staleness assigned to a lead with no usable timestamp.
const NeverContactedDays = 999

// pendingCaptureMediumThreshold is the queue size above which the capture nudge escalates.
const pendingCaptureMediumThreshold = 5

const day = 24 * time.Hour

// EvaluateAll runs every rule family over one cycle's records.
// Rules are independent; the result order is leads, deals, captures.
func EvaluateAll(records Records, settings NudgeSettings, now time.Time, loc *time.Location) []Nudge {
	out := make([]Nudge, 0, len(records.Leads)+len(records.Deals)+1)
	out = append(out, EvaluateLeads(records.Leads, settings, now)...)
	out = append(out, EvaluateDeals(records.Deals, settings, now, loc)...)
	out = append(out, EvaluateCaptures(records.Captures, now)...)
	return out
}

// EvaluateLeads applies the stale-lead rule to each lead.
func EvaluateLeads(leads []Lead, settings NudgeSettings, now time.Time) []Nudge {
	out := make([]Nudge, 0, len(leads))
	for _, lead := range leads {
		if n, ok := StaleLeadNudge(lead, settings, now); ok {
			out = append(out, n)
		}
	}
	return out
}

// StaleLeadNudge evaluates the stale-lead rule for one lead.
func StaleLeadNudge(lead Lead, settings NudgeSettings, now time.Time) (Nudge, bool) {
	if strings.TrimSpace(lead.ID) == "" || !lead.IsStaleCandidate() {
		return Nudge{}, false
	}
	anchor, contacted := staleAnchor(lead)
	daysSince := NeverContactedDays
	if !anchor.IsZero() {
		daysSince = wholeDays(now.Sub(anchor))
	}
	if daysSince < settings.StaleLeadWarningDays {
		return Nudge{}, false
	}

	priority := PriorityMedium
	if daysSince >= settings.StaleLeadCriticalDays {
		priority = PriorityHigh
	}
	title := "Never contacted"
	if contacted {
		title = fmt.Sprintf("No contact in %d %s", daysSince, plural(daysSince, "day", "days"))
	}
	name := strings.TrimSpace(lead.Name)
	n := Nudge{
		ID:          NudgeID(NudgeTypeStaleLead, lead.ID),
		Type:        NudgeTypeStaleLead,
		Priority:    priority,
		Title:       title,
		Subtitle:    name,
		EntityType:  EntityTypeLead,
		EntityID:    lead.ID,
		EntityName:  name,
		DaysOverdue: intPtr(daysSince),
		CreatedAt:   now,
	}
	if lead.LastTouch != nil {
		responded := lead.LastTouch.Responded
		n.LastTouchResponded = &responded
	}
	return n, true
}

// staleAnchor picks the staleness anchor for one lead and reports whether contact ever happened.
// A logged touch newer than the lead's own timestamp always wins.
func staleAnchor(lead Lead) (time.Time, bool) {
	var anchor time.Time
	contacted := false
	if lead.LastContactedAt != nil && !lead.LastContactedAt.IsZero() {
		anchor = *lead.LastContactedAt
		contacted = true
	} else {
		anchor = lead.UpdatedAt
	}
	if lead.LastTouch != nil && !lead.LastTouch.CreatedAt.IsZero() {
		contacted = true
		if lead.LastTouch.CreatedAt.After(anchor) {
			anchor = lead.LastTouch.CreatedAt
		}
	}
	return anchor, contacted
}

// EvaluateDeals applies the action and stalled rules to each open deal.
func EvaluateDeals(deals []Deal, settings NudgeSettings, now time.Time, loc *time.Location) []Nudge {
	out := make([]Nudge, 0, len(deals))
	for _, deal := range deals {
		if n, ok := DealActionNudge(deal, now, loc); ok {
			out = append(out, n)
		}
		if n, ok := DealStalledNudge(deal, settings, now); ok {
			out = append(out, n)
		}
	}
	return out
}

// DealActionNudge evaluates the next-action due rule for one deal.
func DealActionNudge(deal Deal, now time.Time, loc *time.Location) (Nudge, bool) {
	if strings.TrimSpace(deal.ID) == "" || !deal.IsOpen() || deal.NextActionDue == nil || deal.NextActionDue.IsZero() {
		return Nudge{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	due := *deal.NextActionDue
	daysDiff := due.DaysUntil(DateOf(now.In(loc)))
	if daysDiff > 1 {
		return Nudge{}, false
	}

	action := strings.TrimSpace(deal.NextAction)
	if action == "" {
		action = "Next action"
	}
	dueAt := due.In(loc)
	n := dealNudgeBase(deal, now)
	n.DueDate = &dueAt
	switch {
	case daysDiff < 0:
		overdue := -daysDiff
		n.Type = NudgeTypeActionOverdue
		n.Priority = PriorityHigh
		n.Title = "Overdue: " + action
		n.Subtitle = fmt.Sprintf("%s · %d %s overdue", deal.DisplayName(), overdue, plural(overdue, "day", "days"))
		n.DaysOverdue = intPtr(overdue)
	case daysDiff == 0:
		n.Type = NudgeTypeActionDueSoon
		n.Priority = PriorityHigh
		n.Title = "Due today: " + action
		n.Subtitle = deal.DisplayName()
	default:
		n.Type = NudgeTypeActionDueSoon
		n.Priority = PriorityMedium
		n.Title = "Due tomorrow: " + action
		n.Subtitle = deal.DisplayName()
	}
	n.ID = NudgeID(n.Type, deal.ID)
	return n, true
}

// DealStalledNudge evaluates the no-update rule for one deal.
func DealStalledNudge(deal Deal, settings NudgeSettings, now time.Time) (Nudge, bool) {
	if strings.TrimSpace(deal.ID) == "" || !deal.IsOpen() || deal.UpdatedAt.IsZero() {
		return Nudge{}, false
	}
	elapsed := now.Sub(deal.UpdatedAt)
	if elapsed <= time.Duration(settings.DealStalledDays)*day {
		return Nudge{}, false
	}
	days := wholeDays(elapsed)
	n := dealNudgeBase(deal, now)
	n.ID = NudgeID(NudgeTypeDealStalled, deal.ID)
	n.Type = NudgeTypeDealStalled
	n.Priority = PriorityMedium
	n.Title = fmt.Sprintf("No activity in %d %s", days, plural(days, "day", "days"))
	n.Subtitle = deal.DisplayName()
	n.DaysOverdue = intPtr(days)
	return n, true
}

// dealNudgeBase fills the entity fields shared by all deal nudges.
func dealNudgeBase(deal Deal, now time.Time) Nudge {
	n := Nudge{
		EntityType: EntityTypeDeal,
		EntityID:   deal.ID,
		EntityName: deal.DisplayName(),
		CreatedAt:  now,
	}
	if deal.Property != nil {
		n.PropertyAddress = deal.Property.Address()
	}
	return n
}

// EvaluateCaptures emits at most one aggregate nudge for the pending capture queue.
func EvaluateCaptures(items []CaptureItem, now time.Time) []Nudge {
	if n, ok := CapturePendingNudge(items, now); ok {
		return []Nudge{n}
	}
	return nil
}

// CapturePendingNudge summarizes the pending capture queue into one nudge.
func CapturePendingNudge(items []CaptureItem, now time.Time) (Nudge, bool) {
	count := 0
	var newest time.Time
	for _, item := range items {
		if !item.IsPending() {
			continue
		}
		count++
		if item.CreatedAt.After(newest) {
			newest = item.CreatedAt
		}
	}
	if count == 0 {
		return Nudge{}, false
	}
	priority := PriorityLow
	if count > pendingCaptureMediumThreshold {
		priority = PriorityMedium
	}
	if newest.IsZero() {
		newest = now
	}
	return Nudge{
		ID:         NudgeID(NudgeTypeCapturePending, CaptureQueueEntityID),
		Type:       NudgeTypeCapturePending,
		Priority:   priority,
		Title:      fmt.Sprintf("%d %s pending review", count, plural(count, "item", "items")),
		Subtitle:   "Capture inbox",
		EntityType: EntityTypeCapture,
		EntityID:   CaptureQueueEntityID,
		CreatedAt:  newest,
	}, true
}

// wholeDays floors a duration to whole days, never below zero.
func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
