package tui

import (
	"time"

	"github.com/hylla/nudger/internal/domain"
)

type Option func(*Model)

// WithSnoozePreset selects the preset used by the snooze key. Unknown names are ignored.
func WithSnoozePreset(name string) Option {
	return func(m *Model) {
		for i, p := range m.presets {
			if p.Name == name {
				m.preset = i
				return
			}
		}
	}
}

// WithClock overrides the clock used for relative due dates.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLocation sets the zone used to render due dates.
func WithLocation(loc *time.Location) Option {
	return func(m *Model) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func defaultPresets() []domain.SnoozePreset {
	return domain.SnoozePresets()
}
