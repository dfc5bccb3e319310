package index

import (
	"github.com/specimen-curation/labelsearch/internal/label"
)

// Weighting modes for index construction.
const (
	// WeightingCount stores raw per-record occurrence counts.
	WeightingCount = "count"
	// WeightingImportance stores tf-idf weights, so tokens shared by many
	// records count for less than rare ones.
	WeightingImportance = "importance"
)

// Posting associates a record with the weight of one token in that record.
type Posting struct {
	RecordID string
	Weight   float64
}

// Params captures how an index was built. They are immutable once built:
// ranking re-tokenizes record text and must reproduce exactly the tokens
// the builder saw.
type Params struct {
	Weighting   string            `json:"weighting"`
	MinTokenLen int               `json:"min_token_len"`
	Keys        []string          `json:"keys"`
	Masks       map[string]string `json:"masks,omitempty"`
}

// Index is the searchable product of a build: token postings with weights
// plus each record's maximum achievable score (the sum of its own token
// weights, used to normalize hit scores).
type Index struct {
	Postings  map[string][]Posting
	MaxScores map[string]float64
	Params    Params

	mask *Mask
}

// Mask returns the compiled masks the index was built with.
func (ix *Index) Mask() *Mask {
	return ix.mask
}

// VocabSize returns the number of distinct tokens.
func (ix *Index) VocabSize() int {
	return len(ix.Postings)
}

// Tokens returns the vocabulary in unspecified order.
func (ix *Index) Tokens() []string {
	out := make([]string, 0, len(ix.Postings))
	for token := range ix.Postings {
		out = append(out, token)
	}
	return out
}

// RecordTokens re-tokenizes one record's corpus text with the index's build
// parameters. Ranking uses this to enforce the one-match-per-record-token
// consumption rule.
func (ix *Index) RecordTokens(r label.Record) []string {
	return Tokenize(RecordText(r, ix.Params.Keys, ix.mask), ix.Params.MinTokenLen)
}
