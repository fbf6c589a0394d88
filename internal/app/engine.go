package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hylla/nudger/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Clock returns the current time.
type Clock func() time.Time

// SourceKind identifies one record source.
type SourceKind string

// SourceKind values.
const (
	SourceLeads    SourceKind = "leads"
	SourceDeals    SourceKind = "deals"
	SourceCaptures SourceKind = "captures"
)

// AllSources lists every source in fetch order.
var AllSources = []SourceKind{SourceLeads, SourceDeals, SourceCaptures}

// EngineConfig holds configuration for the engine.
type EngineConfig struct {
	// Location is the zone used for calendar-day comparisons; nil means time.Local.
	Location *time.Location
	Logger   Logger
}

// Result is one aggregated worklist.
type Result struct {
	Nudges      []domain.Nudge      `json:"nudges"`
	Summary     domain.NudgeSummary `json:"summary"`
	Enabled     bool                `json:"enabled"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Engine turns source records into a ranked, snooze-filtered worklist.
type Engine struct {
	sources  Sources
	snoozes  *SnoozeStore
	settings SettingsProvider
	clock    Clock
	loc      *time.Location
	log      Logger
}

// NewEngine constructs a new engine.
func NewEngine(sources Sources, snoozes *SnoozeStore, settings SettingsProvider, clock Clock, cfg EngineConfig) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Engine{
		sources:  sources,
		snoozes:  snoozes,
		settings: settings,
		clock:    clock,
		loc:      cfg.Location,
		log:      cfg.Logger,
	}
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// Snoozes returns the engine's snooze store.
func (e *Engine) Snoozes() *SnoozeStore {
	return e.snoozes
}

// Settings resolves the current settings. Missing or malformed settings fall back to defaults.
func (e *Engine) Settings(ctx context.Context) domain.NudgeSettings {
	if e.settings == nil {
		return domain.DefaultNudgeSettings()
	}
	settings, err := e.settings.NudgeSettings(ctx)
	if err != nil {
		e.log.Warn("nudge settings unavailable; using defaults", "err", err)
		return domain.DefaultNudgeSettings()
	}
	if err := settings.Validate(); err != nil {
		e.log.Warn("nudge settings malformed; repairing with defaults", "err", err)
		return settings.Normalize()
	}
	return settings
}

// Evaluate runs every rule over records and aggregates the result.
// Disabled settings short-circuit before any rule runs or the snooze store is read.
func (e *Engine) Evaluate(ctx context.Context, settings domain.NudgeSettings, records domain.Records, now time.Time) Result {
	if !settings.Enabled {
		return Result{Nudges: []domain.Nudge{}, Enabled: false, GeneratedAt: now}
	}
	candidates := domain.EvaluateAll(records, settings, now, e.loc)
	snoozed := e.snoozes.ActiveSet(ctx, now)
	ranked, summary := domain.Aggregate(candidates, snoozed)
	return Result{
		Nudges:      ranked,
		Summary:     summary,
		Enabled:     true,
		GeneratedAt: now,
	}
}

// Generate fetches all sources concurrently and returns one aggregated worklist.
func (e *Engine) Generate(ctx context.Context) Result {
	settings := e.Settings(ctx)
	if !settings.Enabled {
		return e.Evaluate(ctx, settings, domain.Records{}, e.clock())
	}
	records := e.FetchAll(ctx)
	if err := ctx.Err(); err != nil {
		return Result{Nudges: []domain.Nudge{}, Enabled: true, GeneratedAt: e.clock()}
	}
	return e.Evaluate(ctx, settings, records, e.clock())
}

// FetchAll queries every source in parallel and waits for all of them.
// A failed source is logged and contributes no records.
func (e *Engine) FetchAll(ctx context.Context) domain.Records {
	var (
		g       errgroup.Group
		results = make([]domain.Records, len(AllSources))
	)
	for i, kind := range AllSources {
		g.Go(func() error {
			records, err := e.FetchSource(ctx, kind)
			if err != nil {
				e.log.Warn("source fetch failed", "source", kind, "err", err)
				return nil
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var merged domain.Records
	for i, kind := range AllSources {
		mergeSource(&merged, results[i], kind)
	}
	return merged
}

// FetchSource queries one source. Only the field for kind is populated in the result.
func (e *Engine) FetchSource(ctx context.Context, kind SourceKind) (domain.Records, error) {
	switch kind {
	case SourceLeads:
		if e.sources.Leads == nil {
			return domain.Records{}, nil
		}
		leads, err := e.sources.Leads.ListStaleCandidateLeads(ctx)
		if err != nil {
			return domain.Records{}, fmt.Errorf("list stale-candidate leads: %w", err)
		}
		return domain.Records{Leads: leads}, nil
	case SourceDeals:
		if e.sources.Deals == nil {
			return domain.Records{}, nil
		}
		deals, err := e.sources.Deals.ListOpenDeals(ctx)
		if err != nil {
			return domain.Records{}, fmt.Errorf("list open deals: %w", err)
		}
		return domain.Records{Deals: deals}, nil
	case SourceCaptures:
		if e.sources.Captures == nil {
			return domain.Records{}, nil
		}
		items, err := e.sources.Captures.ListPendingCaptures(ctx)
		if err != nil {
			return domain.Records{}, fmt.Errorf("list pending captures: %w", err)
		}
		return domain.Records{Captures: items}, nil
	default:
		return domain.Records{}, fmt.Errorf("unknown source %q", kind)
	}
}

// mergeSource copies the kind's field from src into dst.
func mergeSource(dst *domain.Records, src domain.Records, kind SourceKind) {
	switch kind {
	case SourceLeads:
		dst.Leads = src.Leads
	case SourceDeals:
		dst.Deals = src.Deals
	case SourceCaptures:
		dst.Captures = src.Captures
	}
}
