// Command searchd serves ranked fuzzy search over a built index: HTTP API,
// Redis query cache, Prometheus metrics, and health probes. The index is
// loaded once at startup; a rebuild announcement on Kafka invalidates the
// query cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/specimen-curation/labelsearch/internal/datefilter"
	"github.com/specimen-curation/labelsearch/internal/index"
	"github.com/specimen-curation/labelsearch/internal/label"
	"github.com/specimen-curation/labelsearch/internal/search"
	"github.com/specimen-curation/labelsearch/internal/searchsvc"
	"github.com/specimen-curation/labelsearch/internal/store"
	"github.com/specimen-curation/labelsearch/pkg/config"
	"github.com/specimen-curation/labelsearch/pkg/health"
	"github.com/specimen-curation/labelsearch/pkg/kafka"
	"github.com/specimen-curation/labelsearch/pkg/logger"
	"github.com/specimen-curation/labelsearch/pkg/metrics"
	"github.com/specimen-curation/labelsearch/pkg/middleware"
	"github.com/specimen-curation/labelsearch/pkg/postgres"
	pkgredis "github.com/specimen-curation/labelsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	indexPath := flag.String("index", "", "index file; default <dataDir>/<kind>.index.json")
	input := flag.String("input", "", "JSON file of records; empty means load from postgres")
	kind := flag.String("kind", store.KindCollectingEvent, "record kind: label or collecting_event")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "kind", *kind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coll, err := loadRecords(ctx, cfg, *input, *kind)
	if err != nil {
		slog.Error("failed to load records", "error", err)
		os.Exit(1)
	}

	path := *indexPath
	if path == "" {
		path = cfg.Index.DataDir + "/" + *kind + ".index.json"
	}
	ix, err := index.LoadFile(path)
	if err != nil {
		slog.Error("failed to load index", "path", path, "error", err)
		os.Exit(1)
	}
	searcher, err := search.New(ix, coll)
	if err != nil {
		slog.Error("index does not match collection", "error", err)
		os.Exit(1)
	}
	slog.Info("index loaded",
		"path", path,
		"records", coll.Len(),
		"vocabulary", ix.VocabSize(),
		"weighting", ix.Params.Weighting,
	)

	m := metrics.New("labelsearch")
	m.IndexedRecords.Set(float64(coll.Len()))
	m.IndexVocabularySize.Set(float64(ix.VocabSize()))

	var dates *datefilter.Filter
	if *kind == store.KindCollectingEvent {
		dates = datefilter.Build(coll)
		slog.Info("date filter ready", "dated_records", dates.Len())
	}

	var cache *searchsvc.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cache = searchsvc.NewQueryCache(redisClient, cfg.Redis, m)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	if cache != nil && len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt,
			func(ctx context.Context, key, value []byte) error {
				slog.Info("index rebuilt upstream, invalidating query cache", "key", string(key))
				return cache.Invalidate(ctx)
			})
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("rebuild consumer error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if ix.VocabSize() > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d tokens over %d records", ix.VocabSize(), coll.Len()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "empty index"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := searchsvc.New(searcher, dates, cache, m, cfg.Search)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Search.QueryTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func loadRecords(ctx context.Context, cfg *config.Config, input, kind string) (*label.Collection, error) {
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if kind == store.KindCollectingEvent {
			return label.LoadCollectingEvents(f)
		}
		return label.LoadLabels(f)
	}
	client, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return store.New(client).LoadCollection(ctx, kind)
}
