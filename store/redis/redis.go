// Package redis keeps per-terminal cart snapshots and webhook dedupe markers
// in Redis so a restarted till process picks up where it left off.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/till/cart"
)

// Compile-time check.
var _ cart.SnapshotStore = (*Store)(nil)

const (
	defaultPrefix    = "till"
	defaultCartTTL   = 24 * time.Hour
	defaultDedupeTTL = 72 * time.Hour
)

// Store is a Redis-backed cart.SnapshotStore.
type Store struct {
	client    goredis.UniversalClient
	prefix    string
	cartTTL   time.Duration
	dedupeTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Keys look like "<prefix>:cart:<terminal>".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithCartTTL sets how long an untouched cart survives.
func WithCartTTL(ttl time.Duration) Option {
	return func(s *Store) { s.cartTTL = ttl }
}

// WithDedupeTTL sets how long a processed webhook key is remembered.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Store) { s.dedupeTTL = ttl }
}

// New wraps an existing client. The caller owns the client.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		prefix:    defaultPrefix,
		cartTTL:   defaultCartTTL,
		dedupeTTL: defaultDedupeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open parses a redis:// URL and connects.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := goredis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return New(client, opts...), nil
}

// SaveCart stores the cart and refreshes its TTL.
func (s *Store) SaveCart(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, s.cartKey(c.TerminalID), data, s.cartTTL).Err(); err != nil {
		return fmt.Errorf("redis: save cart %s: %w", c.TerminalID, err)
	}
	return nil
}

// LoadCart returns cart.ErrNoSnapshot when the terminal has nothing saved
// or the snapshot expired.
func (s *Store) LoadCart(ctx context.Context, terminalID string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, s.cartKey(terminalID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cart.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load cart %s: %w", terminalID, err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("redis: unmarshal cart %s: %w", terminalID, err)
	}
	return &c, nil
}

// DeleteCart drops the terminal's snapshot. Deleting a missing key is not an error.
func (s *Store) DeleteCart(ctx context.Context, terminalID string) error {
	if err := s.client.Del(ctx, s.cartKey(terminalID)).Err(); err != nil {
		return fmt.Errorf("redis: delete cart %s: %w", terminalID, err)
	}
	return nil
}

// Seen marks key as processed and reports whether it had been marked before.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.dedupeKey(key), "1", s.dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: dedupe %s: %w", key, err)
	}
	return !ok, nil
}

// Forget clears a dedupe marker so a failed delivery can be processed again.
func (s *Store) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.dedupeKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: forget %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) cartKey(terminalID string) string {
	return fmt.Sprintf("%s:cart:%s", s.prefix, terminalID)
}

func (s *Store) dedupeKey(key string) string {
	return fmt.Sprintf("%s:webhook:%s", s.prefix, key)
}
