// Command indexd builds the token index for one record collection and writes
// it to disk. It is a one-shot batch: load records (from a JSON file or the
// record store), build, save, optionally announce the rebuild on Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/specimen-curation/labelsearch/internal/datefilter"
	"github.com/specimen-curation/labelsearch/internal/index"
	"github.com/specimen-curation/labelsearch/internal/ingest"
	"github.com/specimen-curation/labelsearch/internal/label"
	"github.com/specimen-curation/labelsearch/internal/store"
	"github.com/specimen-curation/labelsearch/pkg/config"
	"github.com/specimen-curation/labelsearch/pkg/kafka"
	"github.com/specimen-curation/labelsearch/pkg/logger"
	"github.com/specimen-curation/labelsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	input := flag.String("input", "", "JSON file of records; empty means load from postgres")
	kind := flag.String("kind", store.KindLabel, "record kind: label or collecting_event")
	out := flag.String("out", "", "index output path; default <dataDir>/<kind>.index.json")
	dateOut := flag.String("date-out", "", "date index output path (collecting events only)")
	announce := flag.Bool("announce", false, "publish an index-rebuilt event on Kafka")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	coll, err := loadRecords(ctx, cfg, *input, *kind)
	if err != nil {
		slog.Error("failed to load records", "error", err)
		os.Exit(1)
	}
	slog.Info("records loaded", "kind", *kind, "records", coll.Len())

	ix, err := index.Build(ctx, coll, index.BuildOptions{
		Weighting:   cfg.Index.Weighting,
		MinTokenLen: cfg.Index.MinTokenLen,
		Keys:        cfg.Index.Keys,
		Masks:       cfg.Index.Masks,
		Workers:     cfg.Index.BuildWorkers,
	})
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}

	path := *out
	if path == "" {
		path = filepath.Join(cfg.Index.DataDir, *kind+".index.json")
	}
	if err := ix.Save(path); err != nil {
		slog.Error("failed to save index", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("index saved", "path", path, "vocabulary", ix.VocabSize())

	if *kind == store.KindCollectingEvent {
		datePath := *dateOut
		if datePath == "" {
			datePath = filepath.Join(cfg.Index.DataDir, *kind+".dates.json")
		}
		if err := saveDateIndex(coll, datePath); err != nil {
			slog.Error("failed to save date index", "path", datePath, "error", err)
			os.Exit(1)
		}
		slog.Info("date index saved", "path", datePath)
	}

	if *announce {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt)
		defer producer.Close()
		event := ingest.IndexRebuiltEvent{
			IndexPath:  path,
			Records:    coll.Len(),
			Vocabulary: ix.VocabSize(),
			Weighting:  cfg.Index.Weighting,
			BuiltAt:    time.Now().UTC(),
		}
		if err := producer.Publish(ctx, kafka.Event{Key: *kind, Value: event}); err != nil {
			slog.Error("failed to announce rebuild", "error", err)
			os.Exit(1)
		}
		slog.Info("rebuild announced", "topic", cfg.Kafka.Topics.IndexRebuilt)
	}
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

func saveDateIndex(coll *label.Collection, path string) error {
	filter := datefilter.Build(coll)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return filter.Dump(f)
}
