package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hylla/nudger/internal/domain"
)

type memKV struct {
	mu     sync.Mutex
	values map[string][]byte
	puts   int
	getErr error

	stall   chan struct{}
	stalled chan struct{}
}

func newMemKV() *memKV {
	return &memKV{values: map[string][]byte{}}
}

// stallNextGet blocks the next GetValue until release is closed. entered closes once it blocks.
func (m *memKV) stallNextGet() (entered <-chan struct{}, release chan<- struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stall = make(chan struct{})
	m.stalled = make(chan struct{})
	return m.stalled, m.stall
}

func (m *memKV) GetValue(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	stall, stalled := m.stall, m.stalled
	m.stall, m.stalled = nil, nil
	m.mu.Unlock()
	if stall != nil {
		close(stalled)
		<-stall
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memKV) PutValue(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	m.puts++
	return nil
}

func (m *memKV) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

type fakeSource struct {
	leads    []domain.Lead
	deals    []domain.Deal
	captures []domain.CaptureItem

	leadsErr error
	calls    atomic.Int32
	// waiting counts lead fetches currently blocked on the gate.
	waiting atomic.Int32

	mu sync.Mutex
	// gate, when set, blocks lead fetches until closed or ctx ends.
	gate chan struct{}
}

func (f *fakeSource) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func (f *fakeSource) ListStaleCandidateLeads(ctx context.Context) ([]domain.Lead, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		f.waiting.Add(1)
		defer f.waiting.Add(-1)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.leadsErr != nil {
		return nil, f.leadsErr
	}
	return f.leads, nil
}

func (f *fakeSource) ListOpenDeals(context.Context) ([]domain.Deal, error) {
	return f.deals, nil
}

func (f *fakeSource) ListPendingCaptures(context.Context) ([]domain.CaptureItem, error) {
	return f.captures, nil
}

func (f *fakeSource) sources() Sources {
	return Sources{Leads: f, Deals: f, Captures: f}
}

var errSourceDown = errors.New("source down")

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func daysAgo(n int) time.Time {
	return fixedNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func sampleSource() *fakeSource {
	lastContact := daysAgo(20)
	due := domain.DateOf(daysAgo(2))
	return &fakeSource{
		leads: []domain.Lead{
			{ID: "l1", Name: "Ada", Status: "active", LastContactedAt: &lastContact, UpdatedAt: daysAgo(20)},
		},
		deals: []domain.Deal{
			{ID: "d1", Stage: "under_contract", NextAction: "Send docs", NextActionDue: &due, UpdatedAt: daysAgo(1)},
		},
		captures: []domain.CaptureItem{
			{ID: "c1", Status: "pending", CreatedAt: daysAgo(1)},
		},
	}
}

func newTestEngine(src *fakeSource, kv *memKV, settings domain.NudgeSettings) *Engine {
	return NewEngine(src.sources(), NewSnoozeStore(kv, nil), StaticSettings(settings), fixedClock, EngineConfig{Location: time.UTC})
}
