package ranking

import (
	"context"
	"errors"
)

// Relevance scorer errors.
var (
	// ErrScoreCountMismatch is returned when a scorer does not return exactly one
	// score per candidate.
	ErrScoreCountMismatch = errors.New("relevance scorer returned wrong number of scores")

	// ErrInvalidScore is returned when a scorer produces a NaN or infinite score.
	ErrInvalidScore = errors.New("relevance scorer returned non-finite score")

	// ErrScorerPanic is returned when a scorer panics during Rank.
	ErrScorerPanic = errors.New("relevance scorer panicked")
)

// ScoredCandidate pairs a candidate with its relevance score.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
}

// RelevanceScorer scores candidates against a query.
//
// IsAvailable must be cheap and side-effect free: it reports whether the scorer
// is configured and usable, and must not perform blocking network I/O.
//
// Rank returns one ScoredCandidate per input candidate, in input order. It may
// fail or block; callers are expected to fall back to the LexicalScorer.
type RelevanceScorer interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Rank(ctx context.Context, query string, candidates []Candidate) ([]ScoredCandidate, error)
}
