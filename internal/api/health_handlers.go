package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check status values reported in HealthResponse.Checks.
const (
	checkOK            = "ok"
	checkError         = "error"
	checkNotConfigured = "not_configured"
)

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	redisChecker HealthChecker
	scorerName   func() string
	timeout      time.Duration
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	// RedisChecker is nil when no Redis is configured.
	RedisChecker HealthChecker

	// ScorerName reports the preferred relevance scorer, e.g. the current
	// stack's scorer. Optional.
	ScorerName func() string

	// Timeout bounds dependency checks. Defaults to 2s.
	Timeout time.Duration
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandlers{
		redisChecker: config.RedisChecker,
		scorerName:   config.ScorerName,
		timeout:      timeout,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Scorer    string            `json:"scorer,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// It always returns 200 while the process can serve requests. Redis status is
// reported when configured; a Redis failure only degrades the status because
// ranking continues without the score cache.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeCodedError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	checks := map[string]string{"runtime": checkOK}
	status := "healthy"
	if h.checkRedis(r.Context(), checks) != nil {
		status = "degraded"
	}

	h.writeHealth(w, r, http.StatusOK, status, checks)
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when a configured dependency is unreachable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeCodedError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	checks := map[string]string{"runtime": checkOK}
	status, code := "healthy", http.StatusOK
	if h.checkRedis(r.Context(), checks) != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	h.writeHealth(w, r, code, status, checks)
}

// checkRedis records the Redis status in checks and returns the check error.
func (h *HealthHandlers) checkRedis(ctx context.Context, checks map[string]string) error {
	if h.redisChecker == nil {
		checks["redis"] = checkNotConfigured
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.redisChecker.HealthCheck(ctx); err != nil {
		checks["redis"] = checkError
		slog.WarnContext(ctx, "redis health check failed", "error", err)
		return err
	}
	checks["redis"] = checkOK
	return nil
}

func (h *HealthHandlers) writeHealth(w http.ResponseWriter, r *http.Request, code int, status string, checks map[string]string) {
	response := HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.scorerName != nil {
		response.Scorer = h.scorerName()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode health response", "error", err)
	}
}
