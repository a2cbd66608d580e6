package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// getCounterVecValue reads the counter for the given labels.
func getCounterVecValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := cv.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.IncRateLimitRequests("/search/rank")
	m.IncRateLimitBlocked("/search/rank")
	m.ObserveHTTPRequest("POST", "/search/rank", "200", 0.01, 100, 200)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{MetricRateLimitRequests, MetricRateLimitBlocked, MetricHTTPRequestsTotal, MetricHTTPRequestDuration, MetricHTTPInFlight} {
		if !found[name] {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewMetrics().Register(reg); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := NewMetrics().Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	m := NewMetrics()

	m.IncRateLimitRequests("/search/rank")
	m.IncRateLimitRequests("/search/rank")
	m.IncRateLimitBlocked("/search/rank")
	m.IncRateLimitStoreErrors()

	if got := getCounterVecValue(t, m.rateLimitRequests, "/search/rank"); got != 2 {
		t.Errorf("expected 2 rate limit checks, got %v", got)
	}
	if got := getCounterVecValue(t, m.rateLimitBlocked, "/search/rank"); got != 1 {
		t.Errorf("expected 1 blocked request, got %v", got)
	}

	var metric dto.Metric
	if err := m.rateLimitStoreErrors.Write(&metric); err != nil {
		t.Fatalf("failed to read store errors: %v", err)
	}
	if metric.GetCounter().GetValue() != 1 {
		t.Errorf("expected 1 store error, got %v", metric.GetCounter().GetValue())
	}
}

func TestMetrics_Collectors(t *testing.T) {
	if got := len(NewMetrics().Collectors()); got != 8 {
		t.Errorf("expected 8 collectors, got %d", got)
	}
}
