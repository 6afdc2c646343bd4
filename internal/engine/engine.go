// Package engine is the query pipeline: normalize, classify, check the
// response cache, fan out data fetches, render or generate an answer, and
// cache the result.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"market-insights/internal/common/logger"
	"market-insights/internal/common/metrics"
	"market-insights/internal/common/observability"
	"market-insights/internal/engine/cache"
	"market-insights/internal/engine/classify"
	"market-insights/internal/engine/extract"
	"market-insights/internal/engine/fetch"
	"market-insights/internal/generator"
	"market-insights/internal/models"
)

const systemPrompt = "You are a knowledgeable real estate market assistant. " +
	"Answer concisely and factually. If the question is outside real estate, say so."

// Generator is the text-generation fallback used for general questions and
// for queries whose data lookups all failed.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*generator.Response, error)
}

// Engine answers natural-language market questions deterministically where
// market data allows, falling back to the generator otherwise.
type Engine struct {
	cache     *cache.ResponseCache
	coord     *fetch.Coordinator
	generator Generator
	obs       *observability.Observability
	cacheTTL  time.Duration
	logger    logger.Logger
}

// New wires an Engine. obs may be nil when OTel is not configured.
func New(responseCache *cache.ResponseCache, coord *fetch.Coordinator, gen Generator, obs *observability.Observability, cacheTTL time.Duration, log logger.Logger) *Engine {
	return &Engine{
		cache:     responseCache,
		coord:     coord,
		generator: gen,
		obs:       obs,
		cacheTTL:  cacheTTL,
		logger:    log,
	}
}

// Answer processes one raw question end to end. Identical questions inside
// the cache TTL return the cached answer with CacheHit set and a fresh
// timing; only the answer production path is ever cached, so an error here
// never poisons a future lookup.
func (e *Engine) Answer(ctx context.Context, raw string) (*models.Answer, error) {
	start := time.Now()

	normalized := extract.Normalize(raw)
	fingerprint := cache.Fingerprint(normalized)
	entities := extract.Extract(normalized)
	queryType := classify.Classify(normalized, entities)

	log := e.logger.With(map[string]interface{}{
		"fingerprint": fingerprint,
		"query_type":  string(queryType),
	})

	if cached, ok := e.cache.Get(fingerprint); ok {
		cached.CacheHit = true
		cached.TookMs = time.Since(start).Milliseconds()
		log.Debug("response cache hit", nil)
		e.record(ctx, cached, start)
		return &cached, nil
	}

	answer := models.Answer{
		QueryID:   uuid.NewString(),
		QueryType: queryType,
		Entities:  entities,
	}

	plan := fetch.Plan(&models.ParsedQuery{
		RawQuery:       raw,
		NormalizedText: normalized,
		Type:           queryType,
		Entities:       entities,
	})

	content, model, engineName, err := e.produce(ctx, raw, queryType, plan, log)
	if err != nil {
		return nil, err
	}

	answer.Content = content
	answer.ModelUsed = model
	answer.Engine = engineName
	answer.TookMs = time.Since(start).Milliseconds()

	e.cache.Put(fingerprint, answer, e.cacheTTL)
	e.record(ctx, answer, start)
	return &answer, nil
}

// produce runs the data path when a plan exists and falls through to the
// generator for general questions or a fully failed fan-out.
func (e *Engine) produce(ctx context.Context, raw string, queryType models.QueryType, plan []fetch.Task, log logger.Logger) (content, model, engineName string, err error) {
	if len(plan) > 0 {
		results, runErr := e.coord.Run(ctx, plan)
		if runErr == nil {
			return renderResults(queryType, results), "", models.EngineMarketData, nil
		}
		log.WithError(runErr).Warn("data path failed, falling back to generator", nil)
	}

	resp, genErr := e.generator.Generate(ctx, systemPrompt, raw)
	if genErr != nil {
		return "", "", "", genErr
	}
	return resp.Content, resp.Model, models.EngineGenerator, nil
}

func (e *Engine) record(ctx context.Context, answer models.Answer, start time.Time) {
	metrics.QueriesProcessed.WithLabelValues(string(answer.QueryType), answer.Engine).Inc()
	metrics.QueryDuration.WithLabelValues(string(answer.QueryType)).Observe(time.Since(start).Seconds())
	if e.obs != nil {
		e.obs.RecordQueryProcessed(ctx, string(answer.QueryType), answer.Engine)
		e.obs.RecordQueryDuration(ctx, time.Since(start), string(answer.QueryType))
	}
}

// renderResults formats fan-out results into deterministic prose. Results
// are walked in task order, so the same inputs always render the same
// answer; failed tasks are simply omitted.
func renderResults(queryType models.QueryType, results []fetch.Result) string {
	var b strings.Builder
	for _, r := range results {
		if !r.OK() {
			continue
		}
		switch r.Task.Kind {
		case fetch.KindYield:
			renderYield(&b, r.Yield)
		case fetch.KindTrend:
			renderTrend(&b, r.Trend)
		case fetch.KindSearch:
			renderListings(&b, r.Task, r.Listings)
		}
	}
	if queryType == models.QueryTypeLocationComparison {
		return "Comparison by gross rental yield:\n" + b.String()
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderYield(b *strings.Builder, m *models.YieldMetric) {
	fmt.Fprintf(b, "%s (%s): avg price $%.0f, avg rent $%.0f/mo, gross yield %.2f%% (%d samples)\n",
		titleCity(m.Location), m.PropertyType, m.AvgPrice, m.AvgRent, m.GrossYield, m.SampleSize)
}

func renderTrend(b *strings.Builder, t *models.TrendSeries) {
	fmt.Fprintf(b, "%s, last %d months:\n", titleCity(t.Location), t.Months)
	for _, p := range t.Points {
		fmt.Fprintf(b, "  %s: avg price $%.0f, avg rent $%.0f (%d transactions)\n",
			p.Month.Format("2006-01"), p.AvgPrice, p.AvgRent, p.TransactionCount)
	}
}

func renderListings(b *strings.Builder, task fetch.Task, listings []models.Listing) {
	if len(listings) == 0 {
		fmt.Fprintf(b, "No %s listings found with gross yield above %.1f%%.\n",
			task.PropertyType, task.Threshold)
		return
	}
	fmt.Fprintf(b, "%d %s listings with gross yield above %.1f%%:\n",
		len(listings), task.PropertyType, task.Threshold)
	for _, l := range listings {
		fmt.Fprintf(b, "  %s, %s: $%.0f, rent $%.0f/mo, yield %.2f%%\n",
			titleCity(l.Location), l.PropertyType, l.Price, l.MonthlyRent, l.GrossYield)
	}
}

func titleCity(city string) string {
	words := strings.Fields(city)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
