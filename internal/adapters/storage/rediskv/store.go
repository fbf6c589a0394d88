// Package rediskv stores snooze state in redis instead of the local sqlite database.
// Snooze writes are read-modify-write, so a single writing process is assumed.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/nudger/internal/app"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "nudger:"

// client is the subset of the redis client used by the store.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Store implements app.KVStore over redis strings.
type Store struct {
	rdb    client
	prefix string
}

var _ app.KVStore = (*Store)(nil)

// Open parses a redis:// URL, connects, and verifies the server answers.
func Open(ctx context.Context, rawURL string) (*Store, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newStore(rdb, DefaultKeyPrefix), nil
}

func newStore(rdb client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping reports whether redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// GetValue returns the value stored under key.
func (s *Store) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

// PutValue stores value under key without expiry; entry TTLs live inside the value.
func (s *Store) PutValue(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}
