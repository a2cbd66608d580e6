package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/onnwee/eventrank/internal/ranking"
)

const (
	// MaxRankCandidates is the largest candidate list accepted per request.
	MaxRankCandidates = 200

	// maxRankBodyBytes bounds the request body; 200 candidates with full
	// page content fit comfortably.
	maxRankBodyBytes = 8 << 20
)

// Ranker runs one ranking call. *ranking.Stack implements it.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) (ranking.Response, error)
}

// RankHandlers serves the ranking endpoint. It only translates HTTP to
// ranking.Request and back; all ranking logic lives in the ranking package.
type RankHandlers struct {
	ranker Ranker
}

// NewRankHandlers creates the ranking handlers.
func NewRankHandlers(ranker Ranker) *RankHandlers {
	return &RankHandlers{ranker: ranker}
}

// Rank handles POST /search/rank.
func (h *RankHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeCodedError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err != nil || mediaType != "application/json" {
			writeCodedError(w, r, ErrCodeUnsupportedMedia, "Content-Type must be application/json")
			return
		}
	}

	var req ranking.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxRankBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeCodedError(w, r, ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		writeCodedError(w, r, ErrCodeBadRequest, "Invalid JSON request body")
		return
	}

	if len(req.Candidates) > MaxRankCandidates {
		writeCodedError(w, r, ErrCodeValidation,
			fmt.Sprintf("At most %d candidates are allowed, got %d", MaxRankCandidates, len(req.Candidates)))
		return
	}

	resp, err := h.ranker.Rank(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeCodedError(w, r, ErrCodeTimeout, "Request cancelled before ranking")
			return
		}
		slog.ErrorContext(r.Context(), "ranking failed", "error", err)
		writeCodedError(w, r, ErrCodeInternal, "Ranking failed")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode rank response", "error", err)
	}
}
