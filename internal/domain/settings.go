package domain

// Default threshold values used when settings are missing or malformed.
const (
	DefaultStaleLeadWarningDays  = 7
	DefaultStaleLeadCriticalDays = 14
	DefaultDealStalledDays       = 14
)

// NudgeSettings holds the caller-supplied rule thresholds and the master kill switch.
type NudgeSettings struct {
	Enabled               bool `json:"enabled" toml:"enabled"`
	StaleLeadWarningDays  int  `json:"stale_lead_warning_days" toml:"stale_lead_warning_days"`
	StaleLeadCriticalDays int  `json:"stale_lead_critical_days" toml:"stale_lead_critical_days"`
	DealStalledDays       int  `json:"deal_stalled_days" toml:"deal_stalled_days"`
}

// DefaultNudgeSettings returns the built-in thresholds.
func DefaultNudgeSettings() NudgeSettings {
	return NudgeSettings{
		Enabled:               true,
		StaleLeadWarningDays:  DefaultStaleLeadWarningDays,
		StaleLeadCriticalDays: DefaultStaleLeadCriticalDays,
		DealStalledDays:       DefaultDealStalledDays,
	}
}

// Validate reports whether the threshold invariants hold.
func (s NudgeSettings) Validate() error {
	if s.StaleLeadWarningDays < 0 || s.StaleLeadCriticalDays < s.StaleLeadWarningDays || s.DealStalledDays < 0 {
		return ErrInvalidSettings
	}
	return nil
}

// Normalize repairs malformed thresholds by falling back to defaults.
// The Enabled flag is always preserved.
func (s NudgeSettings) Normalize() NudgeSettings {
	defaults := DefaultNudgeSettings()
	out := s
	if out.StaleLeadWarningDays < 0 {
		out.StaleLeadWarningDays = defaults.StaleLeadWarningDays
	}
	if out.StaleLeadCriticalDays < out.StaleLeadWarningDays {
		if defaults.StaleLeadCriticalDays >= out.StaleLeadWarningDays {
			out.StaleLeadCriticalDays = defaults.StaleLeadCriticalDays
		} else {
			out.StaleLeadCriticalDays = out.StaleLeadWarningDays
		}
	}
	if out.DealStalledDays < 0 {
		out.DealStalledDays = defaults.DealStalledDays
	}
	return out
}
