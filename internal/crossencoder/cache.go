package crossencoder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/eventrank/internal/ranking"
)

const (
	// DefaultCacheTTL is how long a cached relevance score stays valid.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultFetchTimeout bounds a shared upstream call. It is detached from
	// any single caller, so it needs its own deadline.
	DefaultFetchTimeout = defaultHTTPTimeout
)

// ScoreStore persists relevance scores by key.
// Implementations must be safe for concurrent use.
type ScoreStore interface {
	// GetScores returns the scores found for keys. Missing or expired keys are
	// absent from the map.
	GetScores(ctx context.Context, keys []string) (map[string]float64, error)

	// SetScores stores scores with the given TTL.
	SetScores(ctx context.Context, scores map[string]float64, ttl time.Duration) error
}

// Cache wraps a RelevanceScorer and caches its per-candidate scores. Only
// cache misses reach the wrapped scorer, and concurrent requests for the same
// set of misses share one upstream call. The shared call does not inherit
// any caller's cancellation; each caller stops waiting on its own context.
type Cache struct {
	scorer       ranking.RelevanceScorer
	store        ScoreStore
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	group        singleflight.Group
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithTTL sets the TTL of stored scores.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds the shared upstream call for a set of misses.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithCacheLogger sets the logger used for store failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache decorates scorer with a score cache backed by store.
func NewCache(scorer ranking.RelevanceScorer, store ScoreStore, opts ...CacheOption) *Cache {
	c := &Cache{
		scorer: scorer,
		store:  store,
		ttl:          DefaultCacheTTL,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name reports the wrapped scorer's name.
func (c *Cache) Name() string {
	return c.scorer.Name()
}

// IsAvailable reports the wrapped scorer's availability.
func (c *Cache) IsAvailable(ctx context.Context) bool {
	return c.scorer.IsAvailable(ctx)
}

// Rank implements ranking.RelevanceScorer.
func (c *Cache) Rank(ctx context.Context, query string, candidates []ranking.Candidate) ([]ranking.ScoredCandidate, error) {
	if len(candidates) == 0 {
		return []ranking.ScoredCandidate{}, nil
	}

	name := c.scorer.Name()
	keys := make([]string, len(candidates))
	for i, cand := range candidates {
		keys[i] = scoreKey(name, query, cand.URL)
	}

	hits, err := c.store.GetScores(ctx, keys)
	if err != nil {
		c.logger.Warn("score cache read failed",
			slog.String("scorer", name),
			slog.String("error", err.Error()),
		)
		hits = nil
	}

	var (
		missIdx  []int
		missKeys []string
		misses   []ranking.Candidate
	)
	for i, key := range keys {
		if _, ok := hits[key]; !ok {
			missIdx = append(missIdx, i)
			missKeys = append(missKeys, key)
			misses = append(misses, candidates[i])
		}
	}

	var fresh []float64
	if len(misses) > 0 {
		ch := c.group.DoChan(strings.Join(missKeys, ","), func() (any, error) {
			fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
			defer cancel()
			return c.fetch(fetchCtx, query, misses, missKeys)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			fresh = res.Val.([]float64)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	scored := make([]ranking.ScoredCandidate, len(candidates))
	for i, cand := range candidates {
		scored[i] = ranking.ScoredCandidate{Candidate: cand, Score: hits[keys[i]]}
	}
	for j, i := range missIdx {
		scored[i].Score = fresh[j]
	}
	return scored, nil
}

// fetch scores misses upstream and writes them back to the store.
func (c *Cache) fetch(ctx context.Context, query string, misses []ranking.Candidate, keys []string) ([]float64, error) {
	scored, err := c.scorer.Rank(ctx, query, misses)
	if err != nil {
		return nil, err
	}
	if len(scored) != len(misses) {
		return nil, fmt.Errorf("%w: got %d, want %d", ranking.ErrScoreCountMismatch, len(scored), len(misses))
	}

	scores := make([]float64, len(scored))
	entries := make(map[string]float64, len(scored))
	for i, sc := range scored {
		scores[i] = sc.Score
		entries[keys[i]] = sc.Score
	}

	if err := c.store.SetScores(ctx, entries, c.ttl); err != nil {
		c.logger.Warn("score cache write failed",
			slog.String("scorer", c.scorer.Name()),
			slog.Int("entries", len(entries)),
			slog.String("error", err.Error()),
		)
	}
	return scores, nil
}

// scoreKey derives the cache key for one (scorer, query, url) triple.
func scoreKey(scorer, query, url string) string {
	sum := sha256.Sum256([]byte(scorer + "\x00" + query + "\x00" + url))
	return hex.EncodeToString(sum[:])
}
