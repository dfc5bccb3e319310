package label

import "log/slog"

// Collection is an insertion-ordered set of records keyed by identifier.
// A duplicate identifier replaces the earlier record in place
// (last-write-wins); the collision is logged so a curator can fix the
// source data.
type Collection struct {
	ids     []string
	records map[string]Record
}

// NewCollection builds a Collection from records in order.
func NewCollection(records ...Record) *Collection {
	c := &Collection{
		ids:     make([]string, 0, len(records)),
		records: make(map[string]Record, len(records)),
	}
	for _, r := range records {
		c.Add(r)
	}
	return c
}

// Add appends a record, replacing any existing record with the same
// identifier without changing its position.
func (c *Collection) Add(r Record) {
	id := r.ID()
	if _, exists := c.records[id]; exists {
		slog.Warn("duplicate record identifier, keeping the newer record", "id", id)
	} else {
		c.ids = append(c.ids, id)
	}
	c.records[id] = r
}

// Get returns the record with the given identifier.
func (c *Collection) Get(id string) (Record, bool) {
	r, ok := c.records[id]
	return r, ok
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.ids)
}

// IDs returns the record identifiers in insertion order.
func (c *Collection) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// All returns the records in insertion order.
func (c *Collection) All() []Record {
	out := make([]Record, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.records[id])
	}
	return out
}

// Subset returns a new Collection holding the records for which keep
// returns true, preserving order.
func (c *Collection) Subset(keep func(Record) bool) *Collection {
	sub := NewCollection()
	for _, id := range c.ids {
		if r := c.records[id]; keep(r) {
			sub.Add(r)
		}
	}
	return sub
}

// Keys returns the attribute names shared by the collection's records, or
// nil for an empty collection.
func (c *Collection) Keys() []string {
	if len(c.ids) == 0 {
		return nil
	}
	return c.records[c.ids[0]].Keys()
}
