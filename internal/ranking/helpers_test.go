package ranking

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// fixedNow is the reference time used by tests that depend on recency.
var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var errScorerDown = errors.New("scorer down")

// stubScorer is a configurable RelevanceScorer for tests.
type stubScorer struct {
	name      string
	available bool
	scores    []float64
	err       error
	panicMsg  string
	block     bool
	calls     atomic.Int32
}

func (s *stubScorer) Name() string { return s.name }

func (s *stubScorer) IsAvailable(context.Context) bool { return s.available }

func (s *stubScorer) Rank(ctx context.Context, _ string, candidates []Candidate) ([]ScoredCandidate, error) {
	s.calls.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]ScoredCandidate, 0, len(s.scores))
	for i, score := range s.scores {
		if i >= len(candidates) {
			break
		}
		out = append(out, ScoredCandidate{Candidate: candidates[i], Score: score})
	}
	return out, nil
}

// freshCandidate returns an https candidate published at fixedNow, which
// scores 0.34 under the default weights before relevance, geo, schema or topic.
func freshCandidate(url, title string) Candidate {
	return Candidate{
		URL:      url,
		Title:    title,
		Snippet:  "",
		Metadata: map[string]any{"publishedDate": fixedNow.Format(time.RFC3339)},
	}
}

// onlyWeights returns a config with every weight zero except those set in w,
// no score threshold and no result limit.
func onlyWeights(w Weights) Config {
	return Config{Weights: w, MinScore: 0, MaxCandidates: 0}
}
