package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// Reranker blends relevance and feature scores into a ranked list under an
// immutable Config. A Reranker is safe for concurrent use; to change its
// weights build a new one with WithWeights.
type Reranker struct {
	config        Config
	scorer        RelevanceScorer
	lexical       *LexicalScorer
	features      *FeatureCalculator
	logger        *slog.Logger
	metrics       *Metrics
	scorerTimeout time.Duration
}

// RerankerOption customises a Reranker.
type RerankerOption func(*Reranker)

// WithScorer sets the preferred relevance scorer, typically a cross-encoder.
// Without one the reranker always uses lexical scoring.
func WithScorer(s RelevanceScorer) RerankerOption {
	return func(r *Reranker) {
		r.scorer = s
	}
}

// WithLogger sets the logger used to report scorer failures.
func WithLogger(logger *slog.Logger) RerankerOption {
	return func(r *Reranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the reference time used for the recency feature.
func WithClock(now func() time.Time) RerankerOption {
	return func(r *Reranker) {
		r.features = NewFeatureCalculator(now)
	}
}

// WithMetrics sets the metrics used to count scorer fallbacks.
func WithMetrics(m *Metrics) RerankerOption {
	return func(r *Reranker) {
		r.metrics = m
	}
}

// WithScorerTimeout bounds each call to the preferred scorer. A timed-out call
// is treated as a scorer failure. Zero means no timeout.
func WithScorerTimeout(d time.Duration) RerankerOption {
	return func(r *Reranker) {
		if d > 0 {
			r.scorerTimeout = d
		}
	}
}

// NewReranker creates a Reranker with the given configuration.
func NewReranker(cfg Config, opts ...RerankerOption) *Reranker {
	r := &Reranker{
		config:   cfg,
		lexical:  NewLexicalScorer(),
		features: NewFeatureCalculator(nil),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns a copy of the reranker's configuration.
func (r *Reranker) Config() Config {
	return r.config
}

// WithWeights returns a new Reranker whose weights are the current weights
// with the non-zero fields of override applied. The receiver is unchanged.
func (r *Reranker) WithWeights(override Weights) *Reranker {
	next := *r
	next.config.Weights = MergeWeights(r.config.Weights, override)
	return &next
}

// Outcome is the result of one Rerank call.
type Outcome struct {
	Results    []Result
	ScorerUsed string
}

// Rerank scores, filters, sorts, ranks and truncates candidates.
//
// Candidates whose final score is below MinScore are dropped. Ties in final
// score keep their input order. Scorer failures never surface: the lexical
// scorer is used instead. The only error returned is ctx's, when it is already
// done before ranking starts.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Candidate, country string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if len(candidates) == 0 {
		return Outcome{Results: []Result{}, ScorerUsed: r.ScorerName(ctx)}, nil
	}

	relevance, used := r.relevance(ctx, query, candidates)

	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		f := r.features.Calculate(query, c, country)
		final := r.config.Weights.blend(relevance[i], f)
		if final < r.config.MinScore {
			continue
		}
		results = append(results, Result{
			Candidate:  c,
			Features:   f,
			Relevance:  relevance[i],
			FinalScore: final,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	for i := range results {
		results[i].Rank = i + 1
	}

	if r.config.MaxCandidates > 0 && len(results) > r.config.MaxCandidates {
		results = results[:r.config.MaxCandidates]
	}

	return Outcome{Results: results, ScorerUsed: used}, nil
}

// ScorerName returns the name of the scorer a call made now would prefer.
func (r *Reranker) ScorerName(ctx context.Context) string {
	if r.scorer != nil && r.scorer.IsAvailable(ctx) {
		return r.scorer.Name()
	}
	return LexicalScorerName
}

// relevance returns one relevance score per candidate and the name of the
// scorer that produced them.
func (r *Reranker) relevance(ctx context.Context, query string, candidates []Candidate) ([]float64, string) {
	if r.scorer != nil {
		if r.scorer.IsAvailable(ctx) {
			scores, err := r.scorerScores(ctx, query, candidates)
			if err == nil {
				return scores, r.scorer.Name()
			}
			r.logger.WarnContext(ctx, "relevance scorer failed, falling back to lexical",
				"scorer", r.scorer.Name(),
				"candidates", len(candidates),
				"query_length", len(query),
				"error", err)
			r.metrics.IncFallback(FallbackError)
		} else {
			r.logger.DebugContext(ctx, "relevance scorer unavailable, using lexical",
				"scorer", r.scorer.Name())
			r.metrics.IncFallback(FallbackUnavailable)
		}
	}
	return r.lexical.Scores(query, candidates), LexicalScorerName
}

// scorerScores calls the preferred scorer and validates its output.
func (r *Reranker) scorerScores(ctx context.Context, query string, candidates []Candidate) (scores []float64, err error) {
	if r.scorerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.scorerTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			scores = nil
			err = fmt.Errorf("%w: %v", ErrScorerPanic, rec)
		}
	}()

	scored, err := r.scorer.Rank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	if len(scored) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrScoreCountMismatch, len(scored), len(candidates))
	}

	scores = make([]float64, len(scored))
	for i, s := range scored {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			return nil, fmt.Errorf("%w: candidate %d", ErrInvalidScore, i)
		}
		scores[i] = s.Score
	}
	return scores, nil
}
