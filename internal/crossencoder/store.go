package crossencoder

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type scoreEntry struct {
	score     float64
	expiresAt time.Time
}

// InMemoryScoreStore implements ScoreStore using an in-memory map.
// Suitable for single-instance deployments and tests.
type InMemoryScoreStore struct {
	mu      sync.RWMutex
	entries map[string]scoreEntry
	now     func() time.Time
}

// NewInMemoryScoreStore creates a new in-memory score store.
func NewInMemoryScoreStore() *InMemoryScoreStore {
	return &InMemoryScoreStore{
		entries: make(map[string]scoreEntry),
		now:     time.Now,
	}
}

// GetScores implements ScoreStore.
func (s *InMemoryScoreStore) GetScores(ctx context.Context, keys []string) (map[string]float64, error) {
	now := s.now()
	found := make(map[string]float64, len(keys))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range keys {
		entry, ok := s.entries[key]
		if !ok || !now.Before(entry.expiresAt) {
			continue
		}
		found[key] = entry.score
	}
	return found, nil
}

// SetScores implements ScoreStore.
func (s *InMemoryScoreStore) SetScores(ctx context.Context, scores map[string]float64, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, score := range scores {
		s.entries[key] = scoreEntry{score: score, expiresAt: expiresAt}
	}
	return nil
}

// Cleanup removes expired entries.
func (s *InMemoryScoreStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (s *InMemoryScoreStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const redisKeyPrefix = "eventrank:score:"

// RedisScoreStore implements ScoreStore on Redis so scores are shared across
// instances.
type RedisScoreStore struct {
	client *redis.Client
}

// NewRedisScoreStore creates a Redis-backed score store.
func NewRedisScoreStore(client *redis.Client) *RedisScoreStore {
	return &RedisScoreStore{client: client}
}

// GetScores implements ScoreStore with a single MGET.
func (s *RedisScoreStore) GetScores(ctx context.Context, keys []string) (map[string]float64, error) {
	if len(keys) == 0 {
		return map[string]float64{}, nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = redisKeyPrefix + key
	}

	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	found := make(map[string]float64, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(str, 64)
		if err != nil {
			continue
		}
		found[keys[i]] = score
	}
	return found, nil
}

// SetScores implements ScoreStore with one pipelined SET EX per key.
func (s *RedisScoreStore) SetScores(ctx context.Context, scores map[string]float64, ttl time.Duration) error {
	if len(scores) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for key, score := range scores {
		pipe.Set(ctx, redisKeyPrefix+key, strconv.FormatFloat(score, 'g', -1, 64), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}
