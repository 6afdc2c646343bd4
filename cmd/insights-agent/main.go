// insights-agent answers real-estate market questions, either one-shot from
// the command line or in batch from a CSV of questions.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"market-insights/internal/batch"
	"market-insights/internal/common/config"
	"market-insights/internal/common/database"
	"market-insights/internal/common/logger"
	"market-insights/internal/common/observability"
	"market-insights/internal/engine"
	"market-insights/internal/engine/cache"
	"market-insights/internal/engine/fetch"
	"market-insights/internal/engine/usage"
	"market-insights/internal/generator"
	"market-insights/internal/store"
)

func main() {
	questionFlag := flag.String("q", "", "single question to answer")
	inputFlag := flag.String("input", "", "input CSV of question_id,question rows")
	outputFlag := flag.String("output", "results.csv", "output CSV path for batch mode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting insights agent", map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := connectPostgres(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	rds := connectRedis(ctx, cfg, zapLogger)
	if rds != nil {
		defer rds.Close()
	}

	es, err := connectElasticsearch(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("elasticsearch unavailable", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	metricsServer := startMetricsServer(cfg.App.MetricsAddr, zapLogger)
	defer shutdownMetricsServer(metricsServer, zapLogger)

	var redisClient *redis.Client
	if rds != nil {
		redisClient = rds.GetClient()
	}
	marketStore := store.New(pg.GetDB(), es.GetClient(), redisClient, cfg.Database.Elasticsearch.ListingIndex, cfg.Engine.StoreCacheTTL, log)
	coordinator := fetch.NewCoordinator(marketStore, cfg.Engine.MaxWorkers, cfg.Engine.FetchTimeout, log)
	counter := usage.NewCounter(cfg.Generator.DailyLimit)
	gen := generator.NewClient(cfg.Generator, counter, log)
	responseCache := cache.New(cfg.Engine.CacheCapacity)
	eng := engine.New(responseCache, coordinator, gen, obs, cfg.Engine.CacheTTL, log)

	switch {
	case *questionFlag != "":
		answer, err := eng.Answer(ctx, *questionFlag)
		if err != nil {
			zapLogger.Fatal("question failed", zap.Error(err))
		}
		fmt.Println(answer.Content)
		log.Info("answered", map[string]interface{}{
			"query_type": string(answer.QueryType),
			"engine":     answer.Engine,
			"took_ms":    answer.TookMs,
		})

	case *inputFlag != "":
		processor := batch.NewProcessor(eng, cfg.Batch, log)
		if err := processor.ProcessCSV(ctx, *inputFlag, *outputFlag); err != nil {
			zapLogger.Fatal("batch run failed", zap.Error(err))
		}

	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -q \"question\" or -input questions.csv")
		flag.Usage()
		os.Exit(2)
	}
}

// connectPostgres dials Postgres with backoff; the agent cannot answer data
// queries without it.
func connectPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*database.PostgresClient, error) {
	var client *database.PostgresClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, func() error {
		var err error
		client, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}, log, "postgres")
	return client, err
}

// connectRedis is best-effort: the store degrades to direct reads when the
// cache is down, so a failure here only logs.
func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *database.RedisClient {
	client, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.Warn("redis client init failed, continuing without store cache", zap.Error(err))
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, continuing without store cache", zap.Error(err))
		client.Close()
		return nil
	}
	return client
}

func connectElasticsearch(cfg *config.Config, log *zap.Logger) (*database.ElasticsearchClient, error) {
	var client *database.ElasticsearchClient
	err := retryWithBackoff(context.Background(), 5, 2*time.Second, func() error {
		var err error
		client, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return client.Ping()
	}, log, "elasticsearch")
	return client, err
}

func retryWithBackoff(ctx context.Context, attempts int, initialDelay time.Duration, fn func() error, log *zap.Logger, name string) error {
	delay := initialDelay
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn("connection attempt failed, retrying",
			zap.String("target", name),
			zap.Int("attempt", i),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("%s: all %d connection attempts failed: %w", name, attempts, err)
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown failed", zap.Error(err))
	}
}
