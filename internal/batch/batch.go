// Package batch scores many niches concurrently through the gateway,
// with a bounded worker pool and pacing so bulk scans cannot stampede
// upstream services.
package batch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nichescope/nichescope/internal/cache"
	"github.com/nichescope/nichescope/internal/gateway"
	"github.com/nichescope/nichescope/internal/metrics"
	"github.com/nichescope/nichescope/internal/scoring"
	"github.com/nichescope/nichescope/internal/signals"
)

// Request names one niche to score and the producers that feed it.
type Request struct {
	Keyword string
	Service string
	TTL     time.Duration

	// Trend and Competitors fetch the raw payloads; Fallbacks are optional.
	Trend               gateway.Producer
	Competitors         gateway.Producer
	TrendFallback       gateway.Producer
	CompetitorsFallback gateway.Producer
}

// Result pairs a request with its outcome. Err is per-item: one failed
// keyword never aborts the rest of the batch.
type Result struct {
	Keyword     string
	Opportunity scoring.Opportunity
	Err         error
}

// Runner drives batched scoring runs.
type Runner struct {
	gw      *gateway.Gateway
	engine  *scoring.Engine
	workers int
	pacer   *rate.Limiter
	logger  *slog.Logger
}

// NewRunner builds a runner. workers bounds concurrent fetches; perSecond
// paces producer invocations across the whole batch.
func NewRunner(gw *gateway.Gateway, engine *scoring.Engine, workers int, perSecond float64, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		gw:      gw,
		engine:  engine,
		workers: workers,
		pacer:   rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger,
	}
}

// ScoreMany scores every request, in input order. The returned slice always
// has one Result per Request; failures are recorded in Result.Err.
func (r *Runner) ScoreMany(ctx context.Context, requests []Request) []Result {
	results := make([]Result, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			if err := r.pacer.Wait(ctx); err != nil {
				results[i] = Result{Keyword: req.Keyword, Err: err}
				return nil
			}
			results[i] = r.scoreOne(ctx, req)
			return nil
		})
	}
	// Workers never return errors; per-item failures live in results.
	_ = g.Wait()

	for _, res := range results {
		outcome := "ok"
		if res.Err != nil {
			outcome = "error"
		}
		metrics.ScansTotal.WithLabelValues(outcome).Inc()
	}
	return results
}

func (r *Runner) scoreOne(ctx context.Context, req Request) Result {
	service := req.Service
	if service == "" {
		service = "trends"
	}

	trendRaw, err := r.fetchMap(ctx, service, cache.Key("trend", req.Keyword), req.TTL, req.Trend, req.TrendFallback)
	if err != nil {
		r.logger.Warn("trend fetch failed", "keyword", req.Keyword, "error", err)
		return Result{Keyword: req.Keyword, Err: err}
	}

	compRaw, err := r.fetchMap(ctx, service, cache.Key("competitors", req.Keyword), req.TTL, req.Competitors, req.CompetitorsFallback)
	if err != nil {
		r.logger.Warn("competitor fetch failed", "keyword", req.Keyword, "error", err)
		return Result{Keyword: req.Keyword, Err: err}
	}

	in := signals.BuildInputs(signals.NormalizeTrend(trendRaw), signals.NormalizeCompetitors(compRaw))
	return Result{Keyword: req.Keyword, Opportunity: r.engine.Score(req.Keyword, in)}
}

// fetchMap fetches through the gateway and decodes the payload. A payload
// that is not a JSON object decodes to nil and normalizes conservatively.
func (r *Runner) fetchMap(ctx context.Context, service, key string, ttl time.Duration, producer, fallback gateway.Producer) (map[string]any, error) {
	if producer == nil {
		return nil, nil
	}
	payload, err := r.gw.Fetch(ctx, service, key, ttl, producer, fallback)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		r.logger.Warn("malformed payload, scoring conservatively", "key", key, "error", err)
		return nil, nil
	}
	return raw, nil
}
