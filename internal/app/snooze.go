package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hylla/nudger/internal/domain"
)

// SnoozeKey is the well-known key holding the persisted snooze list.
const SnoozeKey = "nudge_snoozes"

// SnoozeStore persists TTL-bounded nudge suppression as one JSON array in a KVStore.
// Reads fail open: an unreadable list means nothing is snoozed.
type SnoozeStore struct {
	kv  KVStore
	log Logger
	// mu serializes read-modify-write cycles within this process only.
	mu sync.Mutex
}

// NewSnoozeStore constructs a snooze store over kv.
func NewSnoozeStore(kv KVStore, log Logger) *SnoozeStore {
	if log == nil {
		log = nopLogger{}
	}
	return &SnoozeStore{kv: kv, log: log}
}

// Entries returns the raw persisted list, including expired entries.
func (s *SnoozeStore) Entries(ctx context.Context) ([]domain.SnoozeEntry, error) {
	if s == nil || s.kv == nil {
		return nil, nil
	}
	raw, found, err := s.kv.GetValue(ctx, SnoozeKey)
	if err != nil {
		return nil, fmt.Errorf("read snoozes: %w", err)
	}
	if !found || len(raw) == 0 {
		return nil, nil
	}
	var entries []domain.SnoozeEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode snoozes: %w", err)
	}
	return entries, nil
}

// IsSnoozed reports whether id has an unexpired entry at now.
func (s *SnoozeStore) IsSnoozed(ctx context.Context, id string, now time.Time) bool {
	return s.ActiveSet(ctx, now).Contains(id)
}

// ActiveSet returns the ids with unexpired entries at now.
func (s *SnoozeStore) ActiveSet(ctx context.Context, now time.Time) domain.SnoozeSet {
	entries, err := s.Entries(ctx)
	if err != nil {
		s.log.Warn("snooze list unreadable; treating nothing as snoozed", "err", err)
		return domain.SnoozeSet{}
	}
	set := make(domain.SnoozeSet, len(entries))
	for _, e := range entries {
		if e.ActiveAt(now) {
			set[e.NudgeID] = struct{}{}
		}
	}
	return set
}

// Snooze upserts the entry for id so it expires at now+duration.
// A zero duration ends any active snooze immediately.
func (s *SnoozeStore) Snooze(ctx context.Context, id string, duration time.Duration, now time.Time) (domain.SnoozeEntry, error) {
	entry, err := domain.NewSnoozeEntry(id, duration, now)
	if err != nil {
		return domain.SnoozeEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.Entries(ctx)
	if err != nil {
		// The caller's own write must survive an unreadable list.
		s.log.Warn("snooze list unreadable; rewriting", "err", err)
		entries = nil
	}
	next := make([]domain.SnoozeEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.NudgeID == entry.NudgeID {
			continue
		}
		next = append(next, e)
	}
	next = append(next, entry)
	if err := s.write(ctx, next); err != nil {
		return domain.SnoozeEntry{}, err
	}
	return entry, nil
}

// Unsnooze ends any active snooze for id.
func (s *SnoozeStore) Unsnooze(ctx context.Context, id string, now time.Time) error {
	_, err := s.Snooze(ctx, id, 0, now)
	return err
}

// PruneExpired rewrites the persisted list keeping only entries still active at now.
// It is idempotent and returns the number of removed entries.
func (s *SnoozeStore) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.Entries(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]domain.SnoozeEntry, 0, len(entries))
	for _, e := range entries {
		if e.ActiveAt(now) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write(ctx, kept); err != nil {
		return 0, err
	}
	s.log.Debug("pruned expired snoozes", "removed", removed, "kept", len(kept))
	return removed, nil
}

// write persists the full list.
func (s *SnoozeStore) write(ctx context.Context, entries []domain.SnoozeEntry) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("write snoozes: no store configured")
	}
	if entries == nil {
		entries = []domain.SnoozeEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode snoozes: %w", err)
	}
	if err := s.kv.PutValue(ctx, SnoozeKey, raw); err != nil {
		return fmt.Errorf("write snoozes: %w", err)
	}
	return nil
}
