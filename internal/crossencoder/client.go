// Package crossencoder provides a relevance scorer backed by an HTTP rerank
// service (Cohere/Jina-compatible) and a caching decorator for its scores.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/onnwee/eventrank/internal/ranking"
	"github.com/onnwee/eventrank/internal/tracing"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "rerank-multilingual-v3.0"

	// maxContentRunes bounds the content sent per document.
	maxContentRunes = 2000

	defaultHTTPTimeout = 15 * time.Second
)

// Client errors.
var (
	ErrNotConfigured    = errors.New("cross-encoder endpoint or api key not configured")
	ErrUnexpectedStatus = errors.New("cross-encoder returned unexpected status")
	ErrIndexOutOfRange  = errors.New("cross-encoder returned out of range index")
)

// Client scores candidates through a remote rerank API.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	name       string
	httpClient *http.Client
}

// Option customises the Client.
type Option func(*Client)

// WithModel overrides the default rerank model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient swaps the HTTP client (timeouts, proxies, test servers).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithName overrides the scorer name reported in ranking stats.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// New creates a Client for the given rerank endpoint.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		model:    DefaultModel,
		httpClient: &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements ranking.RelevanceScorer.
func (c *Client) Name() string {
	if c.name != "" {
		return c.name
	}
	return "cross-encoder:" + c.model
}

// IsAvailable reports whether an endpoint and API key are configured. It never
// touches the network.
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.endpoint != "" && c.apiKey != ""
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int      `json:"index"`
		RelevanceScore *float64 `json:"relevance_score"`
		Score          *float64 `json:"score"`
	} `json:"results"`
}

// Rank implements ranking.RelevanceScorer. Scores are returned in input order;
// candidates the service omits score 0.
func (c *Client) Rank(ctx context.Context, query string, candidates []ranking.Candidate) (scored []ranking.ScoredCandidate, err error) {
	if !c.IsAvailable(ctx) {
		return nil, ErrNotConfigured
	}
	if len(candidates) == 0 {
		return []ranking.ScoredCandidate{}, nil
	}

	ctx, endSpan := tracing.StartScorerSpan(ctx, c.Name(), len(candidates))
	defer func() { endSpan(err) }()

	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = document(cand)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]float64, len(candidates))
	for _, res := range rr.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, res.Index)
		}
		switch {
		case res.RelevanceScore != nil:
			scores[res.Index] = *res.RelevanceScore
		case res.Score != nil:
			scores[res.Index] = *res.Score
		}
	}

	scored = make([]ranking.ScoredCandidate, len(candidates))
	for i, cand := range candidates {
		scored[i] = ranking.ScoredCandidate{Candidate: cand, Score: scores[i]}
	}
	return scored, nil
}

// document builds the text sent to the service for one candidate.
func document(c ranking.Candidate) string {
	content := c.Content
	if r := []rune(content); len(r) > maxContentRunes {
		content = string(r[:maxContentRunes])
	}
	return c.Title + "\n" + c.Snippet + "\n" + content
}
