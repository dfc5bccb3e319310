package label

import (
	"reflect"
	"testing"
)

func TestCollectionOrderAndLookup(t *testing.T) {
	c := NewCollection(
		Label{Identifier: "L3", Text: "granite"},
		Label{Identifier: "L1", Text: "quartz"},
		Label{Identifier: "L2", Text: "slate"},
	)
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if got := c.IDs(); !reflect.DeepEqual(got, []string{"L3", "L1", "L2"}) {
		t.Errorf("IDs = %v, want insertion order", got)
	}
	r, ok := c.Get("L1")
	if !ok || r.Attribute("text") != "quartz" {
		t.Errorf("Get(L1) = %v, %v", r, ok)
	}
	if _, ok := c.Get("L9"); ok {
		t.Error("Get on absent identifier reported success")
	}
}

func TestCollectionDuplicateKeepsNewer(t *testing.T) {
	c := NewCollection(
		Label{Identifier: "L1", Text: "first"},
		Label{Identifier: "L2", Text: "other"},
		Label{Identifier: "L1", Text: "second"},
	)
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	r, _ := c.Get("L1")
	if r.Attribute("text") != "second" {
		t.Errorf("duplicate identifier kept %q, want the newer record", r.Attribute("text"))
	}
	// The replaced record keeps its original position.
	if got := c.IDs(); !reflect.DeepEqual(got, []string{"L1", "L2"}) {
		t.Errorf("IDs = %v, want position preserved", got)
	}
}

func TestCollectionSubset(t *testing.T) {
	c := NewCollection(
		Label{Identifier: "L1", Text: "quartz"},
		Label{Identifier: "L2", Text: "slate"},
		Label{Identifier: "L3", Text: "quartz vein"},
	)
	sub := c.Subset(func(r Record) bool {
		return r.Attribute("text") != "slate"
	})
	if got := sub.IDs(); !reflect.DeepEqual(got, []string{"L1", "L3"}) {
		t.Errorf("Subset IDs = %v, want [L1 L3]", got)
	}
	if c.Len() != 3 {
		t.Error("Subset modified the source collection")
	}
}

func TestCollectionKeys(t *testing.T) {
	if got := NewCollection().Keys(); got != nil {
		t.Errorf("empty collection Keys = %v, want nil", got)
	}
	c := NewCollection(CollectingEvent{Identifier: "E1"})
	want := []string{"ID", "location", "date", "collector", "text"}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
}

func TestRecordAttributes(t *testing.T) {
	e := CollectingEvent{
		Identifier: "E1",
		Location:   "Honshu, Japan",
		Date:       "1932-07",
		Collector:  "Yamada",
		Text:       "Mount Fuji southern slope",
	}
	tests := []struct{ key, want string }{
		{"ID", "E1"},
		{"location", "Honshu, Japan"},
		{"date", "1932-07"},
		{"collector", "Yamada"},
		{"text", "Mount Fuji southern slope"},
		{"altitude", ""},
	}
	for _, tt := range tests {
		if got := e.Attribute(tt.key); got != tt.want {
			t.Errorf("Attribute(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
	l := Label{Identifier: "L1", Text: "raw text"}
	if got := l.Attribute("location"); got != "" {
		t.Errorf("label Attribute(location) = %q, want empty", got)
	}
}
