package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankRequests      = "ranking_requests_total"
	MetricScorerFallbacks   = "ranking_scorer_fallbacks_total"
	MetricRankDuration      = "ranking_duration_seconds"
	MetricRankCandidatesIn  = "ranking_candidates_in"
	MetricRankCandidatesOut = "ranking_candidates_out"
)

// Fallback reasons used as the "reason" label.
const (
	FallbackUnavailable = "unavailable"
	FallbackError       = "error"
)

// Metrics contains Prometheus metrics for the ranking pipeline.
// All operations are thread-safe. A nil *Metrics is a no-op.
type Metrics struct {
	requests      *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	duration      prometheus.Histogram
	candidatesIn  prometheus.Histogram
	candidatesOut prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankRequests,
				Help: "Total number of ranking calls by relevance scorer used",
			},
			[]string{"scorer"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricScorerFallbacks,
				Help: "Total number of fallbacks from the configured relevance scorer to lexical scoring",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Histogram of ranking call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		candidatesIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankCandidatesIn,
			Help:    "Number of candidates received per ranking call",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1 to 256
		}),
		candidatesOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankCandidatesOut,
			Help:    "Number of ranked results returned per ranking call",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.fallbacks,
		m.duration,
		m.candidatesIn,
		m.candidatesOut,
	}
}

// IncFallback increments the fallback counter for the given reason.
func (m *Metrics) IncFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveRank records one completed ranking call.
func (m *Metrics) ObserveRank(scorer string, seconds float64, in, out int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(scorer).Inc()
	m.duration.Observe(seconds)
	m.candidatesIn.Observe(float64(in))
	m.candidatesOut.Observe(float64(out))
}
