// Command ingestd consumes OCR transcript events from Kafka and persists
// them in the record store for the next index build.
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

	"github.com/specimen-curation/labelsearch/internal/ingest"
	"github.com/specimen-curation/labelsearch/internal/store"
	"github.com/specimen-curation/labelsearch/pkg/config"
	"github.com/specimen-curation/labelsearch/pkg/health"
	"github.com/specimen-curation/labelsearch/pkg/kafka"
	"github.com/specimen-curation/labelsearch/pkg/logger"
	"github.com/specimen-curation/labelsearch/pkg/metrics"
	"github.com/specimen-curation/labelsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingest service", "topic", cfg.Kafka.Topics.TranscriptIngest)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	recordStore := store.New(client)
	if err := recordStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := client.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	m := metrics.New("labelsearch_ingest")
	shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
		"/health/live":  checker.LiveHandler(),
		"/health/ready": checker.ReadyHandler(),
	})
	defer shutdownMetrics(context.Background())

	handler := ingest.NewHandler(recordStore, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.TranscriptIngest, handler.Handle)
	defer consumer.Close()

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingest service stopped")
}
