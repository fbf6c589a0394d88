package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores source records and the device-local key/value table.
type Repository struct {
	db *sql.DB
}

var (
	_ app.KVStore       = (*Repository)(nil)
	_ app.LeadSource    = (*Repository)(nil)
	_ app.DealSource    = (*Repository)(nil)
	_ app.CaptureSource = (*Repository)(nil)
)

// Open opens the database at path, creating parent directories and schema as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			last_contacted_at TEXT,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lead_touches (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			responded INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(lead_id) REFERENCES leads(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lead_touches_lead_created ON lead_touches(lead_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS deals (
			id TEXT PRIMARY KEY,
			stage TEXT NOT NULL DEFAULT '',
			next_action TEXT NOT NULL DEFAULT '',
			next_action_due TEXT,
			updated_at TEXT NOT NULL,
			lead_id TEXT NOT NULL DEFAULT '',
			lead_name TEXT NOT NULL DEFAULT '',
			property_id TEXT NOT NULL DEFAULT '',
			address_line_1 TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS capture_items (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// GetValue returns the value stored under key.
func (r *Repository) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// PutValue upserts the value stored under key.
func (r *Repository) PutValue(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, ts(time.Now()))
	return err
}

// ListStaleCandidateLeads returns leads in a stale-candidate status joined with their latest touch.
func (r *Repository) ListStaleCandidateLeads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.name, l.status, l.last_contacted_at, l.updated_at, t.created_at, t.responded
		FROM leads l
		LEFT JOIN lead_touches t ON t.id = (
			SELECT id FROM lead_touches WHERE lead_id = l.id ORDER BY created_at DESC LIMIT 1
		)
		ORDER BY l.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Lead{}
	for rows.Next() {
		var (
			lead         domain.Lead
			lastContact  sql.NullString
			updatedRaw   string
			touchCreated sql.NullString
			responded    sql.NullBool
		)
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Status, &lastContact, &updatedRaw, &touchCreated, &responded); err != nil {
			return nil, err
		}
		if !lead.IsStaleCandidate() {
			continue
		}
		lead.LastContactedAt = parseNullTS(lastContact)
		lead.UpdatedAt = parseTS(updatedRaw)
		if touchCreated.Valid {
			lead.LastTouch = &domain.Touch{
				LeadID:    lead.ID,
				CreatedAt: parseTS(touchCreated.String),
				Responded: responded.Bool,
			}
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

// ListOpenDeals returns deals outside the closed stages.
func (r *Repository) ListOpenDeals(ctx context.Context) ([]domain.Deal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, stage, next_action, next_action_due, updated_at, lead_id, lead_name, property_id, address_line_1, city, state
		FROM deals
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		if !deal.IsOpen() {
			continue
		}
		out = append(out, deal)
	}
	return out, rows.Err()
}

// ListPendingCaptures returns capture items awaiting review.
func (r *Repository) ListPendingCaptures(ctx context.Context) ([]domain.CaptureItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, title, status, created_at
		FROM capture_items
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CaptureItem{}
	for rows.Next() {
		var (
			item       domain.CaptureItem
			createdRaw string
		)
		if err := rows.Scan(&item.ID, &item.Type, &item.Title, &item.Status, &createdRaw); err != nil {
			return nil, err
		}
		if !item.IsPending() {
			continue
		}
		item.CreatedAt = parseTS(createdRaw)
		out = append(out, item)
	}
	return out, rows.Err()
}

// ImportRecords upserts records in one transaction. A lead's LastTouch is stored as a touch row.
func (r *Repository) ImportRecords(ctx context.Context, records domain.Records) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, lead := range records.Leads {
		if strings.TrimSpace(lead.ID) == "" {
			return fmt.Errorf("%w: lead id is required", domain.ErrInvalidRecord)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO leads(id, name, status, last_contacted_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				status = excluded.status,
				last_contacted_at = excluded.last_contacted_at,
				updated_at = excluded.updated_at
		`, lead.ID, lead.Name, lead.Status, nullableTS(lead.LastContactedAt), ts(lead.UpdatedAt)); err != nil {
			return fmt.Errorf("import lead %q: %w", lead.ID, err)
		}
		if lead.LastTouch == nil || lead.LastTouch.CreatedAt.IsZero() {
			continue
		}
		touchID := lead.ID + "@" + ts(lead.LastTouch.CreatedAt)
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO lead_touches(id, lead_id, created_at, responded)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET responded = excluded.responded
		`, touchID, lead.ID, ts(lead.LastTouch.CreatedAt), lead.LastTouch.Responded); err != nil {
			return fmt.Errorf("import touch for lead %q: %w", lead.ID, err)
		}
	}

	for _, deal := range records.Deals {
		if strings.TrimSpace(deal.ID) == "" {
			return fmt.Errorf("%w: deal id is required", domain.ErrInvalidRecord)
		}
		var leadID, leadName string
		if deal.Lead != nil {
			leadID, leadName = deal.Lead.ID, deal.Lead.Name
		}
		var property domain.DealProperty
		if deal.Property != nil {
			property = *deal.Property
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO deals(id, stage, next_action, next_action_due, updated_at, lead_id, lead_name, property_id, address_line_1, city, state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				stage = excluded.stage,
				next_action = excluded.next_action,
				next_action_due = excluded.next_action_due,
				updated_at = excluded.updated_at,
				lead_id = excluded.lead_id,
				lead_name = excluded.lead_name,
				property_id = excluded.property_id,
				address_line_1 = excluded.address_line_1,
				city = excluded.city,
				state = excluded.state
		`, deal.ID, deal.Stage, deal.NextAction, nullableDate(deal.NextActionDue), ts(deal.UpdatedAt),
			leadID, leadName, property.ID, property.AddressLine1, property.City, property.State); err != nil {
			return fmt.Errorf("import deal %q: %w", deal.ID, err)
		}
	}

	for _, item := range records.Captures {
		if strings.TrimSpace(item.ID) == "" {
			return fmt.Errorf("%w: capture id is required", domain.ErrInvalidRecord)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO capture_items(id, type, title, status, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				title = excluded.title,
				status = excluded.status,
				created_at = excluded.created_at
		`, item.ID, item.Type, item.Title, item.Status, ts(item.CreatedAt)); err != nil {
			return fmt.Errorf("import capture %q: %w", item.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Optimize runs sqlite's planner maintenance.
func (r *Repository) Optimize(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `PRAGMA optimize;`)
	return err
}

// scanner abstracts row scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanDeal decodes one deals row.
func scanDeal(s scanner) (domain.Deal, error) {
	var (
		deal       domain.Deal
		dueRaw     sql.NullString
		updatedRaw string
		lead       domain.DealLead
		property   domain.DealProperty
	)
	if err := s.Scan(&deal.ID, &deal.Stage, &deal.NextAction, &dueRaw, &updatedRaw,
		&lead.ID, &lead.Name, &property.ID, &property.AddressLine1, &property.City, &property.State); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Deal{}, app.ErrNotFound
		}
		return domain.Deal{}, err
	}
	deal.UpdatedAt = parseTS(updatedRaw)
	if dueRaw.Valid && strings.TrimSpace(dueRaw.String) != "" {
		due, err := domain.ParseDate(dueRaw.String)
		if err != nil {
			return domain.Deal{}, fmt.Errorf("decode deal %q next_action_due: %w", deal.ID, err)
		}
		deal.NextActionDue = &due
	}
	if lead.ID != "" || lead.Name != "" {
		deal.Lead = &lead
	}
	if property != (domain.DealProperty{}) {
		deal.Property = &property
	}
	return deal, nil
}

// storedTimeLayout keeps fractional seconds at a fixed width so TEXT ordering matches time ordering.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// nullableTS formats an optional timestamp for storage.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func nullableDate(d *domain.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses an optional stored timestamp.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
