package rediskv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hylla/nudger/internal/app"
	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	values map[string]string
	err    error
	closed bool
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestStoreGetPut(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: map[string]string{}}
	store := newStore(fake, DefaultKeyPrefix)

	if _, found, err := store.GetValue(ctx, app.SnoozeKey); err != nil || found {
		t.Fatalf("GetValue(missing) = found %v, err %v", found, err)
	}
	if err := store.PutValue(ctx, app.SnoozeKey, []byte(`[]`)); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	if _, ok := fake.values["nudger:"+app.SnoozeKey]; !ok {
		t.Fatalf("expected prefixed key, got %#v", fake.values)
	}

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	snoozes := app.NewSnoozeStore(store, nil)
	if _, err := snoozes.Snooze(ctx, "deal-stalled-d1", time.Hour, now); err != nil {
		t.Fatalf("Snooze() error = %v", err)
	}
	if !snoozes.IsSnoozed(ctx, "deal-stalled-d1", now) {
		t.Fatal("expected snooze persisted through redis store")
	}
	if err := store.Close(); err != nil || !fake.closed {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	store := newStore(&fakeRedis{values: map[string]string{}, err: boom}, DefaultKeyPrefix)
	if _, _, err := store.GetValue(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped get error, got %v", err)
	}
	if err := store.PutValue(ctx, "k", []byte("v")); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped set error, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected Open() error for empty url")
	}
	if _, err := Open(context.Background(), "http://not-redis"); err == nil {
		t.Fatal("expected Open() error for non-redis scheme")
	}
}
