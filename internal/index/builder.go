package index

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specimen-curation/labelsearch/internal/label"
	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

// BuildOptions configure one index build.
type BuildOptions struct {
	// Weighting is WeightingCount or WeightingImportance.
	Weighting string
	// MinTokenLen discards tokens shorter than this many runes.
	MinTokenLen int
	// Keys restricts extraction to these attributes; empty means every
	// attribute except the identifier.
	Keys []string
	// Masks maps attribute names to patterns whose matches are deleted
	// before tokenization.
	Masks map[string]string
	// Workers bounds per-record counting parallelism; zero means
	// GOMAXPROCS.
	Workers int
}

// Build constructs an index over the collection. It is a one-shot batch:
// per-record token counting runs in parallel, followed by a single
// reduction that computes document frequencies and final weights. There is
// no incremental update; any change to the collection or options requires a
// rebuild.
func Build(ctx context.Context, coll *label.Collection, opts BuildOptions) (*Index, error) {
	switch opts.Weighting {
	case WeightingCount, WeightingImportance:
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownWeighting, 400, "%q", opts.Weighting)
	}
	if opts.MinTokenLen < 1 {
		opts.MinTokenLen = 1
	}
	mask, err := NewMask(opts.Masks)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records := coll.All()
	keys := corpusKeys(coll, opts.Keys)

	// Pass 1: per-record token counts, embarrassingly parallel.
	counts := make([]map[string]int, len(records))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, r := range records {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := make(map[string]int)
			for _, token := range Tokenize(RecordText(r, keys, mask), opts.MinTokenLen) {
				c[token]++
			}
			counts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Reduction: collection-wide document frequencies.
	docFreq := make(map[string]int)
	for _, c := range counts {
		for token := range c {
			docFreq[token]++
		}
	}

	// Pass 2: final weights. Importance mode scales counts by a smoothed
	// inverse document frequency and L2-normalizes each record's vector;
	// tokens present in fewer records always weigh more for a fixed count.
	ix := &Index{
		Postings:  make(map[string][]Posting, len(docFreq)),
		MaxScores: make(map[string]float64, len(records)),
		Params: Params{
			Weighting:   opts.Weighting,
			MinTokenLen: opts.MinTokenLen,
			Keys:        keys,
			Masks:       mask.Patterns(),
		},
		mask: mask,
	}
	n := float64(len(records))
	for i, r := range records {
		weights := make(map[string]float64, len(counts[i]))
		switch opts.Weighting {
		case WeightingCount:
			for token, count := range counts[i] {
				weights[token] = float64(count)
			}
		case WeightingImportance:
			var sumSquares float64
			for token, count := range counts[i] {
				idf := 1 + math.Log((1+n)/(1+float64(docFreq[token])))
				w := float64(count) * idf
				weights[token] = w
				sumSquares += w * w
			}
			if norm := math.Sqrt(sumSquares); norm > 0 {
				for token := range weights {
					weights[token] /= norm
				}
			}
		}
		var maxScore float64
		for _, token := range sortedTokens(weights) {
			w := weights[token]
			if w <= 0 {
				continue
			}
			ix.Postings[token] = append(ix.Postings[token], Posting{
				RecordID: r.ID(),
				Weight:   w,
			})
			maxScore += w
		}
		ix.MaxScores[r.ID()] = maxScore
	}

	slog.Info("index built",
		"records", len(records),
		"vocabulary", len(ix.Postings),
		"weighting", opts.Weighting,
		"min_token_len", opts.MinTokenLen,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return ix, nil
}

// sortedTokens returns the map keys in lexical order so posting lists come
// out deterministic across builds.
func sortedTokens(weights map[string]float64) []string {
	tokens := make([]string, 0, len(weights))
	for token := range weights {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
