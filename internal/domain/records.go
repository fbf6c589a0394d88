package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Lead statuses that are candidates for staleness checks.
var staleCandidateStatuses = []string{"active", "new", "follow-up"}

// Deal stages that mark a deal as closed.
var closedDealStages = []string{"closed_won", "closed_lost"}

// Capture statuses counted as pending review.
var pendingCaptureStatuses = []string{"pending", "ready"}

// Lead is one lead record as supplied by the lead source.
type Lead struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastTouch       *Touch     `json:"last_touch,omitempty"`
}

// Touch is the most recent logged interaction with one lead.
type Touch struct {
	LeadID    string    `json:"lead_id"`
	CreatedAt time.Time `json:"created_at"`
	Responded bool      `json:"responded"`
}

// IsStaleCandidate reports whether the lead status participates in staleness checks.
func (l Lead) IsStaleCandidate() bool {
	return slices.Contains(staleCandidateStatuses, normalizeStatus(l.Status))
}

// DealLead is the denormalized lead reference carried on a deal.
type DealLead struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DealProperty is the denormalized property reference carried on a deal.
type DealProperty struct {
	ID           string `json:"id"`
	AddressLine1 string `json:"address_line_1"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Address formats the property address for display.
func (p DealProperty) Address() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.AddressLine1, p.City, p.State} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// Deal is one deal record as supplied by the deal source.
type Deal struct {
	ID            string        `json:"id"`
	Stage         string        `json:"stage"`
	NextAction    string        `json:"next_action,omitempty"`
	NextActionDue *Date         `json:"next_action_due,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Lead          *DealLead     `json:"lead,omitempty"`
	Property      *DealProperty `json:"property,omitempty"`
}

// IsOpen reports whether the deal stage is outside the closed set.
func (d Deal) IsOpen() bool {
	return !slices.Contains(closedDealStages, normalizeStatus(d.Stage))
}

// DisplayName returns the best human label for the deal.
func (d Deal) DisplayName() string {
	if d.Lead != nil && strings.TrimSpace(d.Lead.Name) != "" {
		return strings.TrimSpace(d.Lead.Name)
	}
	if d.Property != nil {
		if addr := d.Property.Address(); addr != "" {
			return addr
		}
	}
	return "Deal " + d.ID
}

// CaptureItem is one captured item awaiting triage.
type CaptureItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IsPending reports whether the capture item counts toward the pending queue.
func (c CaptureItem) IsPending() bool {
	return slices.Contains(pendingCaptureStatuses, normalizeStatus(c.Status))
}

// Records bundles one cycle's source records.
type Records struct {
	Leads    []Lead
	Deals    []Deal
	Captures []CaptureItem
}

// StaleCandidateStatuses returns the lead statuses checked for staleness.
func StaleCandidateStatuses() []string {
	return slices.Clone(staleCandidateStatuses)
}

// ClosedDealStages returns the deal stages treated as closed.
func ClosedDealStages() []string {
	return slices.Clone(closedDealStages)
}

// PendingCaptureStatuses returns the capture statuses counted as pending.
func PendingCaptureStatuses() []string {
	return slices.Clone(pendingCaptureStatuses)
}

func normalizeStatus(v string) string {
	return strings.TrimSpace(strings.ToLower(v))
}

// Date is a civil calendar date without time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// dateLayout is the wire format for Date.
const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date. A full RFC3339 timestamp is accepted and truncated to its date.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// DaysUntil returns the whole calendar days from "from" to d; negative when d is in the past.
func (d Date) DaysUntil(from Date) int {
	a := time.Date(from.Year, from.Month, from.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD (or RFC3339) string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
