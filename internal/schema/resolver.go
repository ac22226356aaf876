package schema

import (
	"github.com/dbsmedya/entityplan/internal/record"
)

// SlotSpec is a slot a record requires, before identifier assignment.
type SlotSpec struct {
	Role Role
	Name string // kind, facet or relationship name
	Type string // resolved type
}

// KindSet is the set of kinds present in a batch.
type KindSet map[string]struct{}

// NewKindSet builds a KindSet from kind names.
func NewKindSet(kinds ...string) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s.Add(k)
	}
	return s
}

// Add inserts a kind.
func (s KindSet) Add(kind string) {
	s[kind] = struct{}{}
}

// Has reports whether a kind is present.
func (s KindSet) Has(kind string) bool {
	_, ok := s[kind]
	return ok
}

// Resolver determines the slots a record requires.
type Resolver struct {
	schema *Description
}

// NewResolver creates a resolver over a schema description.
func NewResolver(d *Description) *Resolver {
	return &Resolver{schema: d}
}

// Schema returns the description the resolver consults.
func (r *Resolver) Schema() *Description {
	return r.schema
}

// Resolve returns the slots rec requires as a record of the given kind: the
// primary slot, one slot per attachable facet owning at least one of the
// record's fields, and one relationship tuple per relationship whose
// counterpart kind is present in the batch. Relationship tuples are expanded
// into concrete participant pairs by the planner.
func (r *Resolver) Resolve(rec *record.Record, kind string, present KindSet) ([]SlotSpec, error) {
	k, ok := r.schema.Kind(kind)
	if !ok {
		return nil, &UnknownKindError{Kind: kind, Key: rec.Key}
	}

	specs := []SlotSpec{{Role: RolePrimary, Name: k.Name, Type: k.Type}}

	fields := rec.FieldNames()
	for _, fname := range k.Facets {
		if !r.attaches(fields, fname) {
			continue
		}
		typ, _ := r.schema.TypeOf(RoleFacet, fname)
		specs = append(specs, SlotSpec{Role: RoleFacet, Name: fname, Type: typ})
	}

	for _, e := range r.schema.Graph().EdgesFor(kind) {
		if !present.Has(e.Counterpart(kind)) {
			continue
		}
		typ, _ := r.schema.TypeOf(RoleRelationship, e.Name)
		specs = append(specs, SlotSpec{Role: RoleRelationship, Name: e.Name, Type: typ})
	}

	return specs, nil
}

// attaches reports whether at least one of the record's fields is owned by
// the facet.
func (r *Resolver) attaches(fields []string, facet string) bool {
	for _, name := range fields {
		if r.schema.Owns(facet, name) {
			return true
		}
	}
	return false
}
