package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/specimen-curation/labelsearch/internal/index"
	"github.com/specimen-curation/labelsearch/internal/label"
	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

// Scoring modes.
const (
	// ScoringWeighted normalizes the sum of matched token weights by the
	// record's maximum score and by the fraction of query tokens matched.
	ScoringWeighted = "weighted"
	// ScoringLevenshtein scores by string-level similarity of the whole
	// query against the record's text.
	ScoringLevenshtein = "levenshtein"
	// ScoringCombined multiplies the two.
	ScoringCombined = "combined"
)

// Predicate restricts which records are eligible for a query, independent of
// the index. It may be backed by slow external state (a date index, a remote
// service) and is invoked at most once per record per query.
type Predicate func(recordID string) bool

// Options configure a single query.
type Options struct {
	// Scoring selects the scoring mode; empty means ScoringWeighted.
	Scoring string
	// Exact disables fuzzy token matching.
	Exact bool
	// Predicate, when set, filters candidate records.
	Predicate Predicate
}

// Hit is one ranked result.
type Hit struct {
	Record label.Record
	Score  float64
}

// Searcher runs ranked queries against an immutable built index. The
// constructor requires the index, so a search against an unbuilt collection
// cannot be represented.
type Searcher struct {
	ix         *index.Index
	coll       *label.Collection
	vocabByLen map[int][]string
	logger     *slog.Logger
}

// New validates that the index and collection belong together and prepares
// the length-partitioned vocabulary used to prune fuzzy candidates. An
// index referencing records missing from the collection is corrupt: failing
// here beats returning silently wrong rankings later.
func New(ix *index.Index, coll *label.Collection) (*Searcher, error) {
	if ix == nil {
		return nil, apperrors.New(apperrors.ErrNotIndexed, 503, "no index supplied")
	}
	for id := range ix.MaxScores {
		if _, ok := coll.Get(id); !ok {
			return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503,
				"index references record %q missing from collection", id)
		}
	}
	vocab := make(map[int][]string)
	for _, token := range ix.Tokens() {
		l := len([]rune(token))
		vocab[l] = append(vocab[l], token)
	}
	for _, tokens := range vocab {
		sort.Strings(tokens)
	}
	return &Searcher{
		ix:         ix,
		coll:       coll,
		vocabByLen: vocab,
		logger:     slog.Default().With("component", "searcher"),
	}, nil
}

// Index returns the underlying index.
func (s *Searcher) Index() *index.Index {
	return s.ix
}

// Collection returns the record collection the searcher serves.
func (s *Searcher) Collection() *label.Collection {
	return s.coll
}

// recordHits accumulates, for one record, the best match per matched index
// token across all query tokens. A matched index token is "consumed" by its
// first (best) match: repeated or near-duplicate query tokens cannot count
// the same record token twice.
type recordHits map[string]TokenMatch

// Search tokenizes the query with the index's build parameters, matches each
// query token against the index, applies the consumption rule, and returns
// records sorted by descending score. The context deadline is checked
// between vocabulary scans; fuzzy matching over a large vocabulary is the
// dominant cost.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	scoring := opts.Scoring
	if scoring == "" {
		scoring = ScoringWeighted
	}
	switch scoring {
	case ScoringWeighted, ScoringLevenshtein, ScoringCombined:
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownScoring, 400, "%q", scoring)
	}

	queryTokens := index.Tokenize(query, s.ix.Params.MinTokenLen)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	// Memoize the predicate so external filters run at most once per
	// candidate record for the whole query.
	eligible := memoize(opts.Predicate)

	matched := make(map[string]recordHits)
	for _, qt := range queryTokens {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Newf(apperrors.ErrTimeout, 504, "query %q: %v", query, err)
		}
		for id, m := range s.matchToken(qt, opts.Exact, eligible) {
			hits, ok := matched[id]
			if !ok {
				hits = make(recordHits)
				matched[id] = hits
			}
			if prev, seen := hits[m.Token]; !seen || m.better(prev) {
				hits[m.Token] = m
			}
		}
	}

	results := make([]Hit, 0, len(matched))
	for id, hits := range matched {
		record, _ := s.coll.Get(id)

		var raw float64
		for _, m := range hits {
			if scoring == ScoringWeighted {
				raw += m.Weight * m.Identity
			} else {
				// Mismatches are priced by the string-level
				// distance instead.
				raw += m.Weight
			}
		}

		var score float64
		switch scoring {
		case ScoringWeighted, ScoringCombined:
			maxScore := s.ix.MaxScores[id]
			if maxScore <= 0 {
				continue
			}
			score = raw / maxScore
			score *= float64(len(hits)) / float64(len(queryTokens))
			if scoring == ScoringCombined {
				score *= 1 - normalizedDistance(query, record.Attribute("text"))
			}
		case ScoringLevenshtein:
			score = 1 - normalizedDistance(query, record.Attribute("text"))
		}
		results = append(results, Hit{Record: record, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID() < results[j].Record.ID()
	})
	s.logger.Debug("query ranked",
		"query_tokens", len(queryTokens),
		"hits", len(results),
		"scoring", scoring,
	)
	return results, nil
}

// memoize caches predicate verdicts per record identifier. A nil predicate
// admits everything.
func memoize(p Predicate) func(id string) bool {
	if p == nil {
		return func(string) bool { return true }
	}
	seen := make(map[string]bool)
	return func(id string) bool {
		if v, ok := seen[id]; ok {
			return v
		}
		v := p(id)
		seen[id] = v
		return v
	}
}
