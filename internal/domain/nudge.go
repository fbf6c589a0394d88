package domain

import (
	"slices"
	"strings"
	"time"
)

// NudgeType identifies one fixed nudge family.
type NudgeType string

// NudgeType values.
const (
	NudgeTypeStaleLead      NudgeType = "stale_lead"
	NudgeTypeDealStalled    NudgeType = "deal_stalled"
	NudgeTypeActionOverdue  NudgeType = "action_overdue"
	NudgeTypeActionDueSoon  NudgeType = "action_due_soon"
	NudgeTypeCapturePending NudgeType = "capture_pending"
)

// validNudgeTypes stores supported nudge-type values.
var validNudgeTypes = []NudgeType{
	NudgeTypeStaleLead,
	NudgeTypeDealStalled,
	NudgeTypeActionOverdue,
	NudgeTypeActionDueSoon,
	NudgeTypeCapturePending,
}

// Priority identifies one ranking bucket.
type Priority string

// Priority values.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// validPriorities stores priorities in ranking order.
var validPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// EntityType identifies the kind of record a nudge points at.
type EntityType string

// EntityType values.
const (
	EntityTypeLead     EntityType = "lead"
	EntityTypeDeal     EntityType = "deal"
	EntityTypeProperty EntityType = "property"
	EntityTypeCapture  EntityType = "capture"
)

// CaptureQueueEntityID is the sentinel entity id of the aggregate capture nudge.
const CaptureQueueEntityID = "queue"

// Nudge is one ranked worklist item. Nudges are recomputed every cycle and never mutated in place.
type Nudge struct {
	ID                 string     `json:"id"`
	Type               NudgeType  `json:"type"`
	Priority           Priority   `json:"priority"`
	Title              string     `json:"title"`
	Subtitle           string     `json:"subtitle,omitempty"`
	EntityType         EntityType `json:"entity_type"`
	EntityID           string     `json:"entity_id"`
	EntityName         string     `json:"entity_name,omitempty"`
	PropertyAddress    string     `json:"property_address,omitempty"`
	DaysOverdue        *int       `json:"days_overdue,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	LastTouchResponded *bool      `json:"last_touch_responded,omitempty"`
}

// NudgeID derives the deterministic nudge id for one type/entity pair.
func NudgeID(nudgeType NudgeType, entityID string) string {
	return Descriptor(nudgeType).IDPrefix + "-" + strings.TrimSpace(entityID)
}

// OverdueDays returns DaysOverdue, treating an absent value as zero.
func (n Nudge) OverdueDays() int {
	if n.DaysOverdue == nil {
		return 0
	}
	return *n.DaysOverdue
}

// NormalizeNudgeType canonicalizes one nudge-type value.
func NormalizeNudgeType(nudgeType NudgeType) NudgeType {
	return NudgeType(strings.TrimSpace(strings.ToLower(string(nudgeType))))
}

// IsValidNudgeType reports whether a nudge type is supported.
func IsValidNudgeType(nudgeType NudgeType) bool {
	return slices.Contains(validNudgeTypes, NormalizeNudgeType(nudgeType))
}

// NormalizePriority canonicalizes one priority value.
func NormalizePriority(priority Priority) Priority {
	return Priority(strings.TrimSpace(strings.ToLower(string(priority))))
}

// IsValidPriority reports whether a priority is supported.
func IsValidPriority(priority Priority) bool {
	return slices.Contains(validPriorities, NormalizePriority(priority))
}

// NudgeSummary is a per-bucket count over one ranked nudge list.
type NudgeSummary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summarize reduces a nudge list to bucket counts.
func Summarize(nudges []Nudge) NudgeSummary {
	summary := NudgeSummary{Total: len(nudges)}
	for _, n := range nudges {
		switch n.Priority {
		case PriorityHigh:
			summary.High++
		case PriorityMedium:
			summary.Medium++
		case PriorityLow:
			summary.Low++
		}
	}
	return summary
}

func intPtr(v int) *int {
	return &v
}
