// Package plan models planned slots, the persisted plan snapshot and the
// incremental diff between runs.
package plan

import (
	"sort"

	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

// Slot is a planned graph node.
type Slot struct {
	ID           string               `json:"id"`
	Role         schema.Role          `json:"role"`
	Kind         string               `json:"kind"`
	Type         string               `json:"type"`
	Fingerprints []record.Fingerprint `json:"fingerprints"` // one, or source and target for relationships
}

// Clone returns a deep copy of the slot.
func (s *Slot) Clone() *Slot {
	c := *s
	c.Fingerprints = append([]record.Fingerprint(nil), s.Fingerprints...)
	return &c
}

// Equal reports whether two slots are identical.
func (s *Slot) Equal(o *Slot) bool {
	if s.ID != o.ID || s.Role != o.Role || s.Kind != o.Kind || s.Type != o.Type {
		return false
	}
	if len(s.Fingerprints) != len(o.Fingerprints) {
		return false
	}
	for i := range s.Fingerprints {
		if s.Fingerprints[i] != o.Fingerprints[i] {
			return false
		}
	}
	return true
}

// Row is the persisted plan of one record: its kind, fingerprint and
// primary/facet slot set.
type Row struct {
	Key         string             `json:"key"`
	Kind        string             `json:"kind"`
	Fingerprint record.Fingerprint `json:"fingerprint"`
	Slots       []Slot             `json:"slots"` // primary first, then facets
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := *r
	c.Slots = make([]Slot, len(r.Slots))
	for i := range r.Slots {
		c.Slots[i] = *r.Slots[i].Clone()
	}
	return &c
}

// Equal reports whether two rows are identical.
func (r *Row) Equal(o *Row) bool {
	if r.Key != o.Key || r.Kind != o.Kind || r.Fingerprint != o.Fingerprint || len(r.Slots) != len(o.Slots) {
		return false
	}
	for i := range r.Slots {
		if !r.Slots[i].Equal(&o.Slots[i]) {
			return false
		}
	}
	return true
}

// Primary returns the row's primary slot.
func (r *Row) Primary() (Slot, bool) {
	for _, s := range r.Slots {
		if s.Role == schema.RolePrimary {
			return s, true
		}
	}
	return Slot{}, false
}

// Snapshot is the durable plan state between runs.
type Snapshot struct {
	Version       int64            `json:"version"`
	Records       map[string]*Row  `json:"records"`       // logical record key -> row
	Relationships map[string]*Slot `json:"relationships"` // RelationshipKey -> slot
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Records:       make(map[string]*Row),
		Relationships: make(map[string]*Slot),
	}
}

// RelationshipKey identifies a relationship row by kind and ordered
// participant fingerprints.
func RelationshipKey(kind string, src, tgt record.Fingerprint) string {
	return kind + "|" + src.String() + "|" + tgt.String()
}

// Clone returns a deep copy. A nil snapshot clones to an empty one.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot()
	if s == nil {
		return c
	}
	c.Version = s.Version
	for k, row := range s.Records {
		c.Records[k] = row.Clone()
	}
	for k, slot := range s.Relationships {
		c.Relationships[k] = slot.Clone()
	}
	return c
}

// Normalize replaces nil maps with empty ones, for snapshots decoded from
// storage.
func (s *Snapshot) Normalize() *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	if s.Records == nil {
		s.Records = make(map[string]*Row)
	}
	if s.Relationships == nil {
		s.Relationships = make(map[string]*Slot)
	}
	return s
}

func orEmpty(s *Snapshot) *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	return s
}

// IsEmpty reports whether the snapshot holds no rows.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Records) == 0 && len(s.Relationships) == 0)
}

// Keys returns record keys in lexical order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Records))
	for k := range s.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RelationshipKeys returns relationship keys in lexical order.
func (s *Snapshot) RelationshipKeys() []string {
	keys := make([]string, 0, len(s.Relationships))
	for k := range s.Relationships {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SlotCount returns the number of slots across records and relationships.
func (s *Snapshot) SlotCount() int {
	n := len(s.Relationships)
	for _, row := range s.Records {
		n += len(row.Slots)
	}
	return n
}

// TypeMap returns id -> type for every slot in the snapshot.
func (s *Snapshot) TypeMap() map[string]string {
	types := make(map[string]string, s.SlotCount())
	for _, row := range s.Records {
		for _, slot := range row.Slots {
			types[slot.ID] = slot.Type
		}
	}
	for _, slot := range s.Relationships {
		types[slot.ID] = slot.Type
	}
	return types
}
