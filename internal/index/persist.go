package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

// The persisted index is a single JSON document with three sections:
// "index" maps each token to a list of [record_id, weight] pairs, "parameters"
// records the build configuration, and "max_scores" maps record identifiers
// to their maximum achievable score. Weights survive the round trip as JSON
// float64 in both directions.

type persistedIndex struct {
	Index      map[string][]postingPair `json:"index"`
	Parameters Params                   `json:"parameters"`
	MaxScores  map[string]float64       `json:"max_scores"`
}

// postingPair serializes a Posting as the two-element array [record_id,
// weight].
type postingPair Posting

func (p postingPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.RecordID, p.Weight})
}

func (p *postingPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.RecordID); err != nil {
		return fmt.Errorf("posting record id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Weight); err != nil {
		return fmt.Errorf("posting weight: %w", err)
	}
	return nil
}

// Dump writes the index to w as JSON.
func (ix *Index) Dump(w io.Writer) error {
	doc := persistedIndex{
		Index:      make(map[string][]postingPair, len(ix.Postings)),
		Parameters: ix.Params,
		MaxScores:  ix.MaxScores,
	}
	for token, postings := range ix.Postings {
		pairs := make([]postingPair, len(postings))
		for i, p := range postings {
			pairs[i] = postingPair(p)
		}
		doc.Index[token] = pairs
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return nil
}

// Load reads an index from r and validates its structure. A document that
// cannot be decoded, names an unknown weighting mode, or carries postings
// for records missing from max_scores fails loudly: a silently wrong index
// would produce silently wrong rankings.
func Load(r io.Reader) (*Index, error) {
	var doc persistedIndex
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503, "decoding: %v", err)
	}
	switch doc.Parameters.Weighting {
	case WeightingCount, WeightingImportance:
	default:
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503,
			"unknown weighting %q", doc.Parameters.Weighting)
	}
	if doc.Parameters.MinTokenLen < 1 {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503,
			"min token length %d", doc.Parameters.MinTokenLen)
	}
	mask, err := NewMask(doc.Parameters.Masks)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503, "masks: %v", err)
	}
	ix := &Index{
		Postings:  make(map[string][]Posting, len(doc.Index)),
		MaxScores: doc.MaxScores,
		Params:    doc.Parameters,
		mask:      mask,
	}
	if ix.MaxScores == nil {
		ix.MaxScores = make(map[string]float64)
	}
	for token, pairs := range doc.Index {
		postings := make([]Posting, len(pairs))
		for i, p := range pairs {
			if p.Weight < 0 {
				return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503,
					"negative weight for token %q record %q", token, p.RecordID)
			}
			if _, ok := ix.MaxScores[p.RecordID]; !ok {
				return nil, apperrors.Newf(apperrors.ErrCorruptIndex, 503,
					"token %q references record %q absent from max_scores", token, p.RecordID)
			}
			postings[i] = Posting(p)
		}
		ix.Postings[token] = postings
	}
	return ix, nil
}

// Save writes the index to path atomically, via a temp file and rename.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	if err := ix.Dump(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// LoadFile reads an index from a file on disk.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
