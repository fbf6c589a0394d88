// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/nudger/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrUnavailable reports a surface whose backing service is shut down or not configured.
var ErrUnavailable = errors.New("service unavailable")

// ListNudgesRequest filters one worklist read. Empty fields match everything.
type ListNudgesRequest struct {
	Type     string
	Priority string
	Limit    int
	// Refresh forces a full fetch cycle before reading.
	Refresh bool
}

// NudgeList is the transport shape of one published worklist.
type NudgeList struct {
	Nudges      []domain.Nudge      `json:"nudges"`
	Summary     domain.NudgeSummary `json:"summary"`
	Enabled     bool                `json:"enabled"`
	IsLoading   bool                `json:"is_loading"`
	GeneratedAt time.Time           `json:"generated_at"`
	CycleID     string              `json:"cycle_id,omitempty"`
}

// SnoozeRequest suppresses one nudge. Duration accepts a preset name or a Go duration.
type SnoozeRequest struct {
	ID       string `json:"id,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// SnoozeRecord describes one persisted snooze entry.
type SnoozeRecord struct {
	NudgeID   string             `json:"nudge_id"`
	ExpiresAt time.Time          `json:"expires_at"`
	State     domain.SnoozeState `json:"state"`
}

// SnoozeResult is the outcome of one snooze or dismiss action.
type SnoozeResult struct {
	Snooze  SnoozeRecord        `json:"snooze"`
	Summary domain.NudgeSummary `json:"summary"`
}

// NudgeService is the nudge surface exposed by HTTP and MCP transports.
type NudgeService interface {
	ListNudges(context.Context, ListNudgesRequest) (NudgeList, error)
	Summary(context.Context) (domain.NudgeSummary, error)
	Refresh(context.Context) (NudgeList, error)
	SnoozeNudge(context.Context, SnoozeRequest) (SnoozeResult, error)
	DismissNudge(ctx context.Context, id string) (SnoozeResult, error)
	ListSnoozes(context.Context) ([]SnoozeRecord, error)
}

// ReadinessChecker reports whether backing stores are reachable.
type ReadinessChecker interface {
	Ping(context.Context) error
}
