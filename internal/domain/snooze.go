package domain

import (
	"strings"
	"time"
)

// SnoozeEntry is one persisted suppression record. ExpiresAt is epoch milliseconds.
type SnoozeEntry struct {
	NudgeID   string `json:"nudgeId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// SnoozeState identifies the lifecycle state of one snooze entry at a point in time.
type SnoozeState string

// SnoozeState values. Absent entries have no state.
const (
	SnoozeStateActive  SnoozeState = "active"
	SnoozeStateExpired SnoozeState = "expired"
)

// NewSnoozeEntry builds the entry for snoozing id for duration starting at now.
func NewSnoozeEntry(id string, duration time.Duration, now time.Time) (SnoozeEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SnoozeEntry{}, ErrInvalidNudgeID
	}
	if duration < 0 {
		return SnoozeEntry{}, ErrInvalidDuration
	}
	return SnoozeEntry{
		NudgeID:   id,
		ExpiresAt: now.Add(duration).UnixMilli(),
	}, nil
}

// Expiry returns ExpiresAt as a time value.
func (e SnoozeEntry) Expiry() time.Time {
	return time.UnixMilli(e.ExpiresAt)
}

// ActiveAt reports whether the entry still suppresses its nudge at now.
func (e SnoozeEntry) ActiveAt(now time.Time) bool {
	return now.UnixMilli() < e.ExpiresAt
}

// StateAt returns the entry lifecycle state at now.
func (e SnoozeEntry) StateAt(now time.Time) SnoozeState {
	if e.ActiveAt(now) {
		return SnoozeStateActive
	}
	return SnoozeStateExpired
}

// SnoozePreset names one common snooze duration.
type SnoozePreset struct {
	Name     string
	Duration time.Duration
}

var snoozePresets = [...]SnoozePreset{
	{Name: "1h", Duration: time.Hour},
	{Name: "4h", Duration: 4 * time.Hour},
	{Name: "tomorrow", Duration: 24 * time.Hour},
	{Name: "next-week", Duration: 7 * 24 * time.Hour},
}

// SnoozePresets returns the built-in snooze presets.
func SnoozePresets() []SnoozePreset {
	return append([]SnoozePreset(nil), snoozePresets[:]...)
}

// ParseSnoozeDuration resolves a preset name or a Go duration string.
func ParseSnoozeDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	for _, p := range snoozePresets {
		if p.Name == raw {
			return p.Duration, nil
		}
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, ErrInvalidDuration
	}
	return d, nil
}
