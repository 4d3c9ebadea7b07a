package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DedupStore remembers which audit record answered a deduplication key, so a
// retried request returns the original record instead of producing a second
// audit entry. Entries are best-effort: losing one only costs an extra
// calculation, never a missing audit record.
type DedupStore interface {
	// Lookup returns the audit record identifier previously stored for the
	// key, or ok=false when the key is unknown.
	Lookup(ctx context.Context, key string) (recordID string, ok bool, err error)

	// Remember associates the key with an audit record identifier.
	Remember(ctx context.Context, key, recordID string) error
}

// RedisDedupStore is the distributed deduplication backend, shared across
// server replicas.
type RedisDedupStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisDedupStore creates a Redis-backed deduplication store from a
// connection URL.
func NewRedisDedupStore(redisURL string, ttl time.Duration, logger *logrus.Logger) (*RedisDedupStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisDedupStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func dedupRedisKey(key string) string {
	return "cdss:dedup:" + key
}

// Lookup returns the record identifier stored for the key, if any.
func (s *RedisDedupStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	recordID, err := s.client.Get(ctx, dedupRedisKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("dedup lookup: %w", err)
	}
	return recordID, true, nil
}

// Remember stores the key for the configured TTL. The first writer wins so
// concurrent retries converge on one record.
func (s *RedisDedupStore) Remember(ctx context.Context, key, recordID string) error {
	if err := s.client.SetNX(ctx, dedupRedisKey(key), recordID, s.ttl).Err(); err != nil {
		return fmt.Errorf("dedup remember: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}

// MemoryDedupStore is the single-process deduplication backend, used in
// standalone deployments and tests.
type MemoryDedupStore struct {
	cache *expirable.LRU[string, string]
}

// NewMemoryDedupStore creates an in-memory deduplication store holding up to
// size entries for the given TTL.
func NewMemoryDedupStore(size int, ttl time.Duration) *MemoryDedupStore {
	return &MemoryDedupStore{
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// Lookup returns the record identifier stored for the key, if any.
func (s *MemoryDedupStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	recordID, ok := s.cache.Get(key)
	return recordID, ok, nil
}

// Remember stores the key, keeping the first record identifier written.
func (s *MemoryDedupStore) Remember(ctx context.Context, key, recordID string) error {
	if _, ok := s.cache.Get(key); ok {
		return nil
	}
	s.cache.Add(key, recordID)
	return nil
}
