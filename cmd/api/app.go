package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventrank/internal/api"
	"github.com/onnwee/eventrank/internal/config"
	"github.com/onnwee/eventrank/internal/crossencoder"
	"github.com/onnwee/eventrank/internal/health"
	"github.com/onnwee/eventrank/internal/middleware"
	"github.com/onnwee/eventrank/internal/ranking"
)

const (
	serviceName    = "eventrank"
	serviceVersion = "0.1.0"

	// cleanupInterval is how often in-memory stores drop expired entries.
	cleanupInterval = time.Minute
)

// application holds the wired ranking service.
type application struct {
	handler http.Handler
	stack   *ranking.Stack
	redis   *redis.Client
	logger  *slog.Logger

	// cleanups run periodically while the server is up.
	cleanups []func()
}

// newApplication wires the ranking stack, stores, metrics and routes from cfg.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{logger: logger}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.redis = redis.NewClient(opts)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rankingMetrics := ranking.NewMetrics()
	if err := rankingMetrics.Register(registry); err != nil {
		return nil, err
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		return nil, err
	}

	weights, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("calibration not applied", "path", cfg.CalibrationPath, "error", err)
	}
	rankCfg := ranking.Config{
		Weights:       weights,
		MinScore:      cfg.MinScore,
		MaxCandidates: cfg.MaxCandidates,
	}

	opts := []ranking.RerankerOption{
		ranking.WithLogger(logger),
		ranking.WithMetrics(rankingMetrics),
		ranking.WithScorerTimeout(cfg.CrossEncoderTimeout()),
	}
	if scorer := app.newScorer(cfg); scorer != nil {
		opts = append(opts, ranking.WithScorer(scorer))
	}
	app.stack = ranking.NewStack(
		ranking.NewReranker(rankCfg, opts...),
		ranking.WithStackMetrics(rankingMetrics),
		ranking.WithStackLogger(logger),
	)

	var redisChecker api.HealthChecker
	if app.redis != nil {
		redisChecker = health.NewRedisChecker(app.redis)
	}
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		RedisChecker: redisChecker,
		ScorerName:   func() string { return app.stack.Reranker().ScorerName(context.Background()) },
	})

	var rank http.Handler = http.HandlerFunc(api.NewRankHandlers(app.stack).Rank)
	if cfg.RateLimitPerMinute > 0 {
		limit := middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimitPerMinute,
			WindowDuration:    time.Minute,
		}
		rank = middleware.RateLimiter(app.newRateLimitStore(), limit, middleware.IPKeyFunc(), httpMetrics)(rank)
	} else {
		logger.Info("rate limiting disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/search/rank", rank)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/", api.Root(api.ServiceInfo{Service: serviceName, Version: serviceVersion}))

	// RequestID -> Tracing -> Logging -> HTTPMetrics -> routes
	var handler http.Handler = middleware.HTTPMetrics(httpMetrics)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	app.handler = middleware.RequestID(handler)

	return app, nil
}

// newScorer returns the cached cross-encoder scorer, or nil when no
// cross-encoder is configured and ranking stays lexical.
func (a *application) newScorer(cfg *config.Config) ranking.RelevanceScorer {
	client := crossencoder.New(cfg.CrossEncoderURL, cfg.CrossEncoderAPIKey,
		crossencoder.WithModel(cfg.CrossEncoderModel))
	if !client.IsAvailable(context.Background()) {
		a.logger.Info("cross-encoder not configured, using lexical scoring")
		return nil
	}

	var store crossencoder.ScoreStore
	if a.redis != nil {
		store = crossencoder.NewRedisScoreStore(a.redis)
	} else {
		mem := crossencoder.NewInMemoryScoreStore()
		a.cleanups = append(a.cleanups, mem.Cleanup)
		store = mem
	}

	a.logger.Info("cross-encoder enabled", "scorer", client.Name())
	return crossencoder.NewCache(client, store,
		crossencoder.WithTTL(cfg.ScoreCacheTTL()),
		crossencoder.WithFetchTimeout(cfg.CrossEncoderTimeout()),
		crossencoder.WithCacheLogger(a.logger))
}

func (a *application) newRateLimitStore() middleware.RateLimitStore {
	if a.redis != nil {
		return middleware.NewRedisRateLimitStore(a.redis)
	}
	mem := middleware.NewInMemoryRateLimitStore()
	a.cleanups = append(a.cleanups, mem.Cleanup)
	return mem
}

// runMaintenance runs the periodic cleanups until ctx is done.
func (a *application) runMaintenance(ctx context.Context) {
	if len(a.cleanups) == 0 {
		return
	}
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cleanup := range a.cleanups {
				cleanup()
			}
		}
	}
}

// Close releases the Redis client, if any.
func (a *application) Close() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
