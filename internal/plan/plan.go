package plan

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

// RecordPlan is the slot listing of one planned record.
type RecordPlan struct {
	Key            string             `json:"key"`
	Kind           string             `json:"kind"`
	Fingerprint    record.Fingerprint `json:"fingerprint"`
	Classification Classification     `json:"classification"`
	Slots          []Slot             `json:"slots"`                   // primary first, then facets
	Relationships  []string           `json:"relationships,omitempty"` // ids of relationship slots the record takes part in
}

// IDs returns the slot ids of a role, relationship ids included.
func (rp *RecordPlan) IDs(role schema.Role) []string {
	if role == schema.RoleRelationship {
		return rp.Relationships
	}
	var ids []string
	for _, s := range rp.Slots {
		if s.Role == role {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Plan is the read-only result handed to graph assembly: the id -> type map,
// per-record slot listings in batch order and the relationship slots.
type Plan struct {
	TypeMap       map[string]string `json:"typeMap"`
	Records       []RecordPlan      `json:"records"`
	Relationships []Slot            `json:"relationships"` // ordered by relationship key
}

// Entry names a planned record and its classification, in batch order.
type Entry struct {
	Key            string
	Classification Classification
}

// Build assembles the Plan view of a snapshot. Records are listed in the
// order of entries; entries without a row in the snapshot are skipped.
func Build(next *Snapshot, entries []Entry) *Plan {
	next = orEmpty(next)
	p := &Plan{
		TypeMap:       next.TypeMap(),
		Records:       make([]RecordPlan, 0, len(entries)),
		Relationships: make([]Slot, 0, len(next.Relationships)),
	}

	participates := make(map[record.Fingerprint][]string)
	for _, key := range next.RelationshipKeys() {
		slot := next.Relationships[key]
		p.Relationships = append(p.Relationships, *slot.Clone())
		for i, fp := range slot.Fingerprints {
			if i > 0 && fp == slot.Fingerprints[0] {
				continue
			}
			participates[fp] = append(participates[fp], slot.ID)
		}
	}

	for _, e := range entries {
		row, ok := next.Records[e.Key]
		if !ok {
			continue
		}
		cloned := row.Clone()
		p.Records = append(p.Records, RecordPlan{
			Key:            row.Key,
			Kind:           row.Kind,
			Fingerprint:    row.Fingerprint,
			Classification: e.Classification,
			Slots:          cloned.Slots,
			Relationships:  participates[row.Fingerprint],
		})
	}

	return p
}

// Record returns the plan of a record key.
func (p *Plan) Record(key string) (*RecordPlan, bool) {
	for i := range p.Records {
		if p.Records[i].Key == key {
			return &p.Records[i], true
		}
	}
	return nil, false
}

// SlotCount returns the number of slots in the plan.
func (p *Plan) SlotCount() int {
	n := len(p.Relationships)
	for _, rp := range p.Records {
		n += len(rp.Slots)
	}
	return n
}

// IDs returns every slot id in lexical order.
func (p *Plan) IDs() []string {
	ids := make([]string, 0, len(p.TypeMap))
	for id := range p.TypeMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that ids are unique and that the type map holds exactly
// the plan's slots.
func (p *Plan) Validate() error {
	seen := make(map[string]struct{}, len(p.TypeMap))
	check := func(s Slot) error {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate slot id %s", s.ID)
		}
		seen[s.ID] = struct{}{}
		if typ, ok := p.TypeMap[s.ID]; !ok || typ != s.Type {
			return fmt.Errorf("slot %s missing from type map or typed %q instead of %q", s.ID, typ, s.Type)
		}
		return nil
	}

	for _, rp := range p.Records {
		for _, s := range rp.Slots {
			if err := check(s); err != nil {
				return err
			}
		}
	}
	for _, s := range p.Relationships {
		if err := check(s); err != nil {
			return err
		}
	}
	if len(seen) != len(p.TypeMap) {
		return fmt.Errorf("type map holds %d ids but plan has %d slots", len(p.TypeMap), len(seen))
	}
	return nil
}
