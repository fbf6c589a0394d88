package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
)

// AppServiceAdapter maps transport contracts onto the refresh controller.
type AppServiceAdapter struct {
	controller      *app.Controller
	defaultDuration string
}

var _ NudgeService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one adapter over controller.
// defaultDuration is used when a snooze request names no duration.
func NewAppServiceAdapter(controller *app.Controller, defaultDuration string) *AppServiceAdapter {
	if strings.TrimSpace(defaultDuration) == "" {
		defaultDuration = "tomorrow"
	}
	return &AppServiceAdapter{controller: controller, defaultDuration: defaultDuration}
}

// ListNudges returns the current worklist, running a first cycle when none has been published.
func (a *AppServiceAdapter) ListNudges(ctx context.Context, in ListNudgesRequest) (NudgeList, error) {
	if a == nil || a.controller == nil {
		return NudgeList{}, fmt.Errorf("list nudges: %w", ErrUnavailable)
	}
	filterType, filterPriority, err := normalizeListRequest(in)
	if err != nil {
		return NudgeList{}, err
	}

	view := a.controller.Current()
	if in.Refresh || (view.CycleID == "" && view.GeneratedAt.IsZero()) {
		view, err = a.controller.Refresh(ctx)
		if err != nil {
			return NudgeList{}, mapAppError("list nudges", err)
		}
	}

	out := toNudgeList(view)
	if filterType == "" && filterPriority == "" && in.Limit == 0 {
		return out, nil
	}
	filtered := make([]domain.Nudge, 0, len(out.Nudges))
	for _, n := range out.Nudges {
		if filterType != "" && n.Type != filterType {
			continue
		}
		if filterPriority != "" && n.Priority != filterPriority {
			continue
		}
		filtered = append(filtered, n)
		if in.Limit > 0 && len(filtered) == in.Limit {
			break
		}
	}
	out.Nudges = filtered
	return out, nil
}

// Summary returns the current worklist counts.
func (a *AppServiceAdapter) Summary(ctx context.Context) (domain.NudgeSummary, error) {
	list, err := a.ListNudges(ctx, ListNudgesRequest{})
	if err != nil {
		return domain.NudgeSummary{}, err
	}
	return list.Summary, nil
}

// Refresh runs one full fetch cycle.
func (a *AppServiceAdapter) Refresh(ctx context.Context) (NudgeList, error) {
	if a == nil || a.controller == nil {
		return NudgeList{}, fmt.Errorf("refresh: %w", ErrUnavailable)
	}
	view, err := a.controller.Refresh(ctx)
	if err != nil {
		return NudgeList{}, mapAppError("refresh", err)
	}
	return toNudgeList(view), nil
}

// SnoozeNudge suppresses one nudge for the requested duration.
func (a *AppServiceAdapter) SnoozeNudge(ctx context.Context, in SnoozeRequest) (SnoozeResult, error) {
	if a == nil || a.controller == nil {
		return SnoozeResult{}, fmt.Errorf("snooze nudge: %w", ErrUnavailable)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return SnoozeResult{}, fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	raw := strings.TrimSpace(in.Duration)
	if raw == "" {
		raw = a.defaultDuration
	}
	duration, err := domain.ParseSnoozeDuration(raw)
	if err != nil {
		return SnoozeResult{}, fmt.Errorf("duration %q: %w", raw, errors.Join(ErrInvalidRequest, err))
	}
	view, err := a.controller.Snooze(ctx, id, duration)
	if err != nil {
		return SnoozeResult{}, mapAppError("snooze nudge", err)
	}
	return a.snoozeResult(ctx, id, view)
}

// DismissNudge suppresses one nudge indefinitely.
func (a *AppServiceAdapter) DismissNudge(ctx context.Context, id string) (SnoozeResult, error) {
	if a == nil || a.controller == nil {
		return SnoozeResult{}, fmt.Errorf("dismiss nudge: %w", ErrUnavailable)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return SnoozeResult{}, fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	view, err := a.controller.Dismiss(ctx, id)
	if err != nil {
		return SnoozeResult{}, mapAppError("dismiss nudge", err)
	}
	return a.snoozeResult(ctx, id, view)
}

// ListSnoozes returns every persisted entry with its state at the controller's clock.
func (a *AppServiceAdapter) ListSnoozes(ctx context.Context) ([]SnoozeRecord, error) {
	if a == nil || a.controller == nil {
		return nil, fmt.Errorf("list snoozes: %w", ErrUnavailable)
	}
	entries, err := a.controller.Snoozes().Entries(ctx)
	if err != nil {
		return nil, mapAppError("list snoozes", err)
	}
	now := a.controller.Now()
	out := make([]SnoozeRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSnoozeRecord(e, now))
	}
	return out, nil
}

func (a *AppServiceAdapter) snoozeResult(ctx context.Context, id string, view app.View) (SnoozeResult, error) {
	entries, err := a.controller.Snoozes().Entries(ctx)
	if err != nil {
		return SnoozeResult{}, mapAppError("read snooze", err)
	}
	now := a.controller.Now()
	for _, e := range entries {
		if e.NudgeID == id {
			return SnoozeResult{Snooze: toSnoozeRecord(e, now), Summary: view.Summary}, nil
		}
	}
	return SnoozeResult{}, fmt.Errorf("snooze %q: %w", id, ErrNotFound)
}

func normalizeListRequest(in ListNudgesRequest) (domain.NudgeType, domain.Priority, error) {
	var (
		nudgeType domain.NudgeType
		priority  domain.Priority
	)
	if raw := strings.TrimSpace(in.Type); raw != "" {
		nudgeType = domain.NormalizeNudgeType(domain.NudgeType(raw))
		if !domain.IsValidNudgeType(nudgeType) {
			return "", "", fmt.Errorf("unsupported type %q: %w", raw, ErrInvalidRequest)
		}
	}
	if raw := strings.TrimSpace(in.Priority); raw != "" {
		priority = domain.NormalizePriority(domain.Priority(raw))
		if !domain.IsValidPriority(priority) {
			return "", "", fmt.Errorf("unsupported priority %q: %w", raw, ErrInvalidRequest)
		}
	}
	if in.Limit < 0 {
		return "", "", fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	return nudgeType, priority, nil
}

func toNudgeList(view app.View) NudgeList {
	nudges := view.Nudges
	if nudges == nil {
		nudges = []domain.Nudge{}
	}
	return NudgeList{
		Nudges:      nudges,
		Summary:     view.Summary,
		Enabled:     view.Enabled,
		IsLoading:   view.IsLoading,
		GeneratedAt: view.GeneratedAt,
		CycleID:     view.CycleID,
	}
}

func toSnoozeRecord(e domain.SnoozeEntry, now time.Time) SnoozeRecord {
	return SnoozeRecord{NudgeID: e.NudgeID, ExpiresAt: e.Expiry().UTC(), State: e.StateAt(now)}
}

// mapAppError converts app and domain errors into transport errors.
func mapAppError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidNudgeID), errors.Is(err, domain.ErrInvalidDuration):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrControllerClosed):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
