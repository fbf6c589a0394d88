package app

import (
	"context"

	"github.com/hylla/nudger/internal/domain"
)

// LeadSource returns stale-candidate leads, each with its most recent touch when one exists.
type LeadSource interface {
	ListStaleCandidateLeads(context.Context) ([]domain.Lead, error)
}

// DealSource returns open deals.
type DealSource interface {
	ListOpenDeals(context.Context) ([]domain.Deal, error)
}

// CaptureSource returns capture items awaiting review.
type CaptureSource interface {
	ListPendingCaptures(context.Context) ([]domain.CaptureItem, error)
}

// Sources groups the three independent record sources.
type Sources struct {
	Leads    LeadSource
	Deals    DealSource
	Captures CaptureSource
}

// KVStore is the device-local key/value persistence used for snooze state.
// Get reports found=false for a missing key.
type KVStore interface {
	GetValue(ctx context.Context, key string) (value []byte, found bool, err error)
	PutValue(ctx context.Context, key string, value []byte) error
}

// SettingsProvider supplies the current nudge settings.
type SettingsProvider interface {
	NudgeSettings(context.Context) (domain.NudgeSettings, error)
}

// StaticSettings serves one fixed settings value.
type StaticSettings domain.NudgeSettings

// NudgeSettings returns the fixed settings.
func (s StaticSettings) NudgeSettings(context.Context) (domain.NudgeSettings, error) {
	return domain.NudgeSettings(s), nil
}

// Logger is the structured logger used by app components.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// nopLogger discards all log events.
type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}
