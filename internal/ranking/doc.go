// Package ranking implements the search ranking pipeline used by event
// discovery: a raw candidate set (web pages, event listings) is scored against
// a text query and reduced to a small ordered shortlist.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		slog.Warn("using default weights", "error", err)
//	}
//
//	cfg := ranking.DefaultConfig()
//	cfg.Weights = weights
//	reranker := ranking.NewReranker(cfg, ranking.WithScorer(crossEncoder))
//	stack := ranking.NewStack(reranker)
//
//	resp, err := stack.Rank(ctx, ranking.Request{
//		Query:      "legal tech conference",
//		Candidates: candidates,
//		Country:    "de",
//		MaxResults: 10,
//	})
//
// Relevance Scoring:
//
// The relevance signal comes from a RelevanceScorer. An external cross-encoder
// is preferred when it reports itself available; when it is unavailable or its
// Rank call fails, the reranker silently substitutes the LexicalScorer for that
// call. Ranking never fails because of the relevance model.
//
// Features:
//
// Six independent signals in [0, 1] are computed per candidate: lexical,
// recency, authority, geo-match, schema and topic-match. All feature functions
// are total: malformed URLs, unparseable dates or unknown countries degrade to a
// neutral or zero score.
//
// Final Score:
//
//	final = relevance*W.lexical + recency*W.recency + authority*W.authority +
//	        geo*W.geo + schema*W.schema + topic*W.topic
//
// Candidates below MinScore are dropped, the rest are stable-sorted by final
// score (ties keep input order), ranked 1..n and truncated to MaxCandidates.
//
// Calibration:
//
// Weights are supplied as-is and are not required to sum to 1. A Reranker's
// configuration is immutable; re-tuning builds a new Reranker (WithWeights) and
// Stack.Swap/Stack.Retune publish it atomically without affecting in-flight
// calls.
package ranking
