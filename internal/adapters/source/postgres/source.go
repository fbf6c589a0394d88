// Package postgres reads lead, deal and capture records from a shared Postgres database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds pool settings.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// querier is the subset of pgxpool.Pool used by Source.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source implements the three source ports over Postgres.
type Source struct {
	q     querier
	close func()
	ping  func(context.Context) error
}

var (
	_ app.LeadSource    = (*Source)(nil)
	_ app.DealSource    = (*Source)(nil)
	_ app.CaptureSource = (*Source)(nil)
)

// Open creates a connection pool and verifies the database answers.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Source{q: pool, close: pool.Close, ping: pool.Ping}, nil
}

// Close releases the pool.
func (s *Source) Close() {
	if s.close != nil {
		s.close()
	}
}

// Ping reports whether the database is reachable.
func (s *Source) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

const staleCandidateLeadsSQL = `
	SELECT l.id, l.name, l.status, l.last_contacted_at, l.updated_at, t.created_at, t.responded
	FROM leads l
	LEFT JOIN LATERAL (
		SELECT created_at, responded
		FROM lead_touches
		WHERE lead_id = l.id
		ORDER BY created_at DESC
		LIMIT 1
	) t ON true
	WHERE lower(trim(l.status)) = ANY($1)
	ORDER BY l.id`

// ListStaleCandidateLeads returns candidate leads joined with their latest touch.
func (s *Source) ListStaleCandidateLeads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := s.q.Query(ctx, staleCandidateLeadsSQL, domain.StaleCandidateStatuses())
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	out := []domain.Lead{}
	for rows.Next() {
		var (
			lead         domain.Lead
			lastContact  *time.Time
			touchCreated *time.Time
			responded    *bool
		)
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Status, &lastContact, &lead.UpdatedAt, &touchCreated, &responded); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		lead.LastContactedAt = lastContact
		if touchCreated != nil {
			lead.LastTouch = &domain.Touch{LeadID: lead.ID, CreatedAt: *touchCreated}
			if responded != nil {
				lead.LastTouch.Responded = *responded
			}
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

const openDealsSQL = `
	SELECT d.id, d.stage, coalesce(d.next_action, ''), to_char(d.next_action_due, 'YYYY-MM-DD'), d.updated_at,
		coalesce(l.id, ''), coalesce(l.name, ''),
		coalesce(p.id, ''), coalesce(p.address_line_1, ''), coalesce(p.city, ''), coalesce(p.state, '')
	FROM deals d
	LEFT JOIN leads l ON l.id = d.lead_id
	LEFT JOIN properties p ON p.id = d.property_id
	WHERE lower(trim(d.stage)) <> ALL($1)
	ORDER BY d.id`

// ListOpenDeals returns deals outside the closed stages with lead and property denormalized.
func (s *Source) ListOpenDeals(ctx context.Context) ([]domain.Deal, error) {
	rows, err := s.q.Query(ctx, openDealsSQL, domain.ClosedDealStages())
	if err != nil {
		return nil, fmt.Errorf("querying deals: %w", err)
	}
	defer rows.Close()

	out := []domain.Deal{}
	for rows.Next() {
		var (
			deal     domain.Deal
			dueRaw   *string
			lead     domain.DealLead
			property domain.DealProperty
		)
		if err := rows.Scan(&deal.ID, &deal.Stage, &deal.NextAction, &dueRaw, &deal.UpdatedAt,
			&lead.ID, &lead.Name, &property.ID, &property.AddressLine1, &property.City, &property.State); err != nil {
			return nil, fmt.Errorf("scanning deal: %w", err)
		}
		if dueRaw != nil {
			due, err := domain.ParseDate(*dueRaw)
			if err != nil {
				return nil, fmt.Errorf("deal %q next_action_due: %w", deal.ID, err)
			}
			deal.NextActionDue = &due
		}
		if lead.ID != "" {
			deal.Lead = &lead
		}
		if property.ID != "" {
			deal.Property = &property
		}
		out = append(out, deal)
	}
	return out, rows.Err()
}

const pendingCapturesSQL = `
	SELECT id, coalesce(type, ''), coalesce(title, ''), status, created_at
	FROM capture_items
	WHERE lower(trim(status)) = ANY($1)
	ORDER BY created_at`

// ListPendingCaptures returns capture items awaiting review.
func (s *Source) ListPendingCaptures(ctx context.Context) ([]domain.CaptureItem, error) {
	rows, err := s.q.Query(ctx, pendingCapturesSQL, domain.PendingCaptureStatuses())
	if err != nil {
		return nil, fmt.Errorf("querying capture items: %w", err)
	}
	defer rows.Close()

	out := []domain.CaptureItem{}
	for rows.Next() {
		var item domain.CaptureItem
		if err := rows.Scan(&item.ID, &item.Type, &item.Title, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning capture item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
