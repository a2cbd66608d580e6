package ranking

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/eventrank/internal/tracing"
)

// DefaultMaxResults is used when a Request does not set MaxResults.
const DefaultMaxResults = 10

// Request is the input of one ranking call.
type Request struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
	Country    string      `json:"country"`
	MaxResults int         `json:"maxResults,omitempty"`
}

// Stats describes one ranking call.
type Stats struct {
	TotalCandidates  int    `json:"totalCandidates"`
	RankedCandidates int    `json:"rankedCandidates"`
	RerankerUsed     string `json:"rerankerUsed"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// Response is the output of one ranking call. RankedResults is never nil.
type Response struct {
	RankedResults []Result `json:"rankedResults"`
	Stats         Stats    `json:"stats"`
}

// Stack is the entry point of the ranking pipeline. It holds the current
// Reranker behind an atomic pointer so weights can be re-tuned at runtime
// while calls are in flight; each call uses the Reranker it loaded at start.
type Stack struct {
	reranker atomic.Pointer[Reranker]
	metrics  *Metrics
	logger   *slog.Logger
}

// StackOption customises a Stack.
type StackOption func(*Stack)

// WithStackMetrics sets the metrics recorded for every ranking call.
func WithStackMetrics(m *Metrics) StackOption {
	return func(s *Stack) {
		s.metrics = m
	}
}

// WithStackLogger sets the logger used by the stack.
func WithStackLogger(logger *slog.Logger) StackOption {
	return func(s *Stack) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStack creates a Stack around r. A nil r uses a default lexical-only Reranker.
func NewStack(r *Reranker, opts ...StackOption) *Stack {
	if r == nil {
		r = NewReranker(DefaultConfig())
	}
	s := &Stack{logger: slog.Default()}
	s.reranker.Store(r)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reranker returns the reranker currently used for new calls.
func (s *Stack) Reranker() *Reranker {
	return s.reranker.Load()
}

// Swap replaces the reranker used for new calls and returns the previous one.
// A nil r is ignored.
func (s *Stack) Swap(r *Reranker) *Reranker {
	if r == nil {
		return s.reranker.Load()
	}
	return s.reranker.Swap(r)
}

// Retune publishes a new reranker whose weights are the current ones with the
// non-zero fields of override applied.
func (s *Stack) Retune(override Weights) *Reranker {
	for {
		current := s.reranker.Load()
		next := current.WithWeights(override)
		if s.reranker.CompareAndSwap(current, next) {
			s.logger.Info("ranking weights retuned",
				"weights", next.Config().Weights,
				"weight_sum", next.Config().Weights.Sum())
			return next
		}
	}
}

// Rank runs one full rerank cycle. Every call is independent: no state is
// retained between calls. An error is returned only when ctx is already done.
func (s *Stack) Rank(ctx context.Context, req Request) (resp Response, err error) {
	start := time.Now()

	ctx, endSpan := tracing.StartSpan(ctx, "ranking.rank")
	defer func() { endSpan(err) }()

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	r := s.reranker.Load()
	outcome, err := r.Rerank(ctx, req.Query, req.Candidates, req.Country)
	if err != nil {
		return Response{RankedResults: []Result{}}, err
	}

	results := outcome.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	elapsed := time.Since(start)
	resp = Response{
		RankedResults: results,
		Stats: Stats{
			TotalCandidates:  len(req.Candidates),
			RankedCandidates: len(results),
			RerankerUsed:     outcome.ScorerUsed,
			ProcessingTimeMs: elapsed.Milliseconds(),
		},
	}

	tracing.SetAttributes(ctx,
		attribute.Int("ranking.candidates_in", resp.Stats.TotalCandidates),
		attribute.Int("ranking.candidates_out", resp.Stats.RankedCandidates),
		attribute.String("ranking.scorer", resp.Stats.RerankerUsed),
		attribute.String("ranking.country", req.Country),
	)
	s.metrics.ObserveRank(outcome.ScorerUsed, elapsed.Seconds(), resp.Stats.TotalCandidates, resp.Stats.RankedCandidates)

	return resp, nil
}
