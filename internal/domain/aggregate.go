package domain

import (
	"cmp"
	"slices"
)

// SnoozeSet holds the nudge ids suppressed for one aggregation cycle.
type SnoozeSet map[string]struct{}

// Contains reports whether id is suppressed.
func (s SnoozeSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s[id]
	return ok
}

// Aggregate drops snoozed and duplicate candidates, ranks the rest, and summarizes them.
// Ranking is stable: priority bucket first, then DaysOverdue descending (absent counts as zero).
func Aggregate(candidates []Nudge, snoozed SnoozeSet) ([]Nudge, NudgeSummary) {
	ranked := make([]Nudge, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, n := range candidates {
		if snoozed.Contains(n.ID) {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		ranked = append(ranked, n)
	}
	SortNudges(ranked)
	return ranked, Summarize(ranked)
}

// SortNudges stable-sorts nudges into worklist order in place.
func SortNudges(nudges []Nudge) {
	slices.SortStableFunc(nudges, func(a, b Nudge) int {
		if c := cmp.Compare(DescribePriority(a.Priority).Rank, DescribePriority(b.Priority).Rank); c != 0 {
			return c
		}
		return cmp.Compare(b.OverdueDays(), a.OverdueDays())
	})
}
