package index

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/specimen-curation/labelsearch/pkg/errors"
)

func TestDumpLoadRoundTrip(t *testing.T) {
	orig, err := Build(context.Background(), testCollection(), BuildOptions{
		Weighting:   WeightingImportance,
		MinTokenLen: 3,
		Masks:       map[string]string{"text": `\bstamp\d+\b`},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := orig.Dump(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(loaded.Postings, orig.Postings) {
		t.Error("postings changed across dump/load")
	}
	if !reflect.DeepEqual(loaded.MaxScores, orig.MaxScores) {
		t.Error("max scores changed across dump/load")
	}
	if !reflect.DeepEqual(loaded.Params, orig.Params) {
		t.Errorf("parameters changed across dump/load: %+v vs %+v", loaded.Params, orig.Params)
	}
	if loaded.Mask() == nil {
		t.Error("mask not reconstructed from persisted patterns")
	}
}

func TestLoadRejectsCorruptDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "not json",
			doc:  "{",
		},
		{
			name: "unknown weighting",
			doc: `{"index": {}, "parameters": {"weighting": "bm25", "min_token_len": 1},
				"max_scores": {}}`,
		},
		{
			name: "zero min token length",
			doc: `{"index": {}, "parameters": {"weighting": "count", "min_token_len": 0},
				"max_scores": {}}`,
		},
		{
			name: "malformed mask pattern",
			doc: `{"index": {}, "parameters": {"weighting": "count", "min_token_len": 1,
				"masks": {"text": "(["}}, "max_scores": {}}`,
		},
		{
			name: "negative weight",
			doc: `{"index": {"fuji": [["L1", -0.5]]},
				"parameters": {"weighting": "count", "min_token_len": 1},
				"max_scores": {"L1": 1}}`,
		},
		{
			name: "posting without max score",
			doc: `{"index": {"fuji": [["L9", 1]]},
				"parameters": {"weighting": "count", "min_token_len": 1},
				"max_scores": {"L1": 1}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, apperrors.ErrCorruptIndex) {
				t.Errorf("Load: got %v, want ErrCorruptIndex", err)
			}
		})
	}
}

func TestLoadPostingPairFormat(t *testing.T) {
	doc := `{
		"index": {"fuji": [["L1", 2], ["L2", 0.5]]},
		"parameters": {"weighting": "count", "min_token_len": 1},
		"max_scores": {"L1": 2, "L2": 0.5}
	}`
	ix, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	want := []Posting{{RecordID: "L1", Weight: 2}, {RecordID: "L2", Weight: 0.5}}
	if !reflect.DeepEqual(ix.Postings["fuji"], want) {
		t.Errorf("Postings[fuji] = %v, want %v", ix.Postings["fuji"], want)
	}
}

func TestSaveLoadFile(t *testing.T) {
	orig, err := Build(context.Background(), testCollection(), BuildOptions{
		Weighting: WeightingCount,
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "nested", "labels.index.json")
	if err := orig.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded.Postings, orig.Postings) {
		t.Error("postings changed across save/load")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("LoadFile on a missing file succeeded")
	}
}
