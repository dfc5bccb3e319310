// Command query runs one free-text query against a saved index and prints
// record identifiers with scores above a threshold, one per line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/specimen-curation/labelsearch/internal/datefilter"
	"github.com/specimen-curation/labelsearch/internal/index"
	"github.com/specimen-curation/labelsearch/internal/label"
	"github.com/specimen-curation/labelsearch/internal/search"
	"github.com/specimen-curation/labelsearch/pkg/logger"
)

func main() {
	indexPath := flag.String("index", "", "saved index file (required)")
	recordsPath := flag.String("records", "", "JSON records file (required)")
	events := flag.Bool("events", false, "records are collecting events, not labels")
	scoring := flag.String("scoring", search.ScoringWeighted, "scoring mode: weighted, levenshtein, combined")
	threshold := flag.Float64("threshold", 0.5, "minimum score to print")
	exact := flag.Bool("exact", false, "disable fuzzy token matching")
	date := flag.String("date", "", "only match collecting events overlapping this date or range")
	timeout := flag.Duration("timeout", 30*time.Second, "query deadline")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger.Setup(*logLevel, "text")

	if *indexPath == "" || *recordsPath == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: query -index FILE -records FILE [flags] QUERY...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	query := strings.Join(flag.Args(), " ")

	f, err := os.Open(*recordsPath)
	if err != nil {
		fatal(err)
	}
	var coll *label.Collection
	if *events {
		coll, err = label.LoadCollectingEvents(f)
	} else {
		coll, err = label.LoadLabels(f)
	}
	f.Close()
	if err != nil {
		fatal(err)
	}

	ix, err := index.LoadFile(*indexPath)
	if err != nil {
		fatal(err)
	}
	searcher, err := search.New(ix, coll)
	if err != nil {
		fatal(err)
	}

	var predicate search.Predicate
	if *date != "" {
		if !*events {
			fatal(fmt.Errorf("-date requires -events"))
		}
		p, err := datefilter.Build(coll).Predicate(*date)
		if err != nil {
			fatal(err)
		}
		predicate = p
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	hits, err := searcher.Search(ctx, query, search.Options{
		Scoring:   *scoring,
		Exact:     *exact,
		Predicate: predicate,
	})
	if err != nil {
		fatal(err)
	}
	for _, hit := range hits {
		if hit.Score < *threshold {
			break
		}
		fmt.Printf("%s\t%.6f\n", hit.Record.ID(), hit.Score)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "query:", err)
	os.Exit(1)
}
