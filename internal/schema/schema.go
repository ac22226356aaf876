// Package schema holds the typed schema description consulted by the planner:
// entity kinds, the facets attachable to them and the relationships between
// them.
package schema

import (
	"sort"

	"github.com/dbsmedya/entityplan/internal/graph"
)

// Role is the part a slot plays in the planned graph.
type Role string

const (
	RolePrimary      Role = "primary-object"
	RoleFacet        Role = "facet"
	RoleRelationship Role = "relationship"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePrimary, RoleFacet, RoleRelationship:
		return true
	}
	return false
}

// Kind is an entity kind a record can be classified as.
type Kind struct {
	Name   string   `yaml:"-"`
	Type   string   `yaml:"type"`
	Facets []string `yaml:"facets"`
}

// Facet is a named bundle of properties attachable to kinds.
type Facet struct {
	Name       string   `yaml:"-"`
	Type       string   `yaml:"type"`
	Properties []string `yaml:"properties"`
}

// MatchRule restricts a relationship to record pairs whose source field
// equals the target field.
type MatchRule struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Relationship connects a source kind to a target kind.
type Relationship struct {
	Name          string     `yaml:"name"`
	Type          string     `yaml:"type"`
	Source        string     `yaml:"source"`
	Target        string     `yaml:"target"`
	Bidirectional bool       `yaml:"bidirectional"`
	Match         *MatchRule `yaml:"match"`
}

// Undirected reports whether participant order is canonicalized rather than
// taken from the declared source/target. Only bidirectional relationships
// are; a directed self-kind relationship keeps its direction.
func (r *Relationship) Undirected() bool {
	return r.Bidirectional
}

// Description is an immutable, validated schema. It is safe for concurrent
// reads.
type Description struct {
	kinds         map[string]*Kind
	facets        map[string]*Facet
	relationships map[string]*Relationship
	graph         *graph.Graph
	owned         map[string]map[string]struct{} // facet name -> property set
}

// New validates the declarations and builds a Description. Empty types
// resolve to the declaring name.
func New(kinds []Kind, facets []Facet, relationships []Relationship) (*Description, error) {
	d := &Description{
		kinds:         make(map[string]*Kind, len(kinds)),
		facets:        make(map[string]*Facet, len(facets)),
		relationships: make(map[string]*Relationship, len(relationships)),
		owned:         make(map[string]map[string]struct{}, len(facets)),
	}
	var problems InvalidSchemaError

	for i := range facets {
		f := facets[i]
		if f.Name == "" {
			problems.add("facet %d: name is empty", i)
			continue
		}
		if _, dup := d.facets[f.Name]; dup {
			problems.add("duplicate facet %q", f.Name)
			continue
		}
		if f.Type == "" {
			f.Type = f.Name
		}
		f.Properties = append([]string(nil), f.Properties...)
		props := make(map[string]struct{}, len(f.Properties))
		for _, p := range f.Properties {
			if p == "" {
				problems.add("facet %q: empty property name", f.Name)
				continue
			}
			props[p] = struct{}{}
		}
		d.facets[f.Name] = &f
		d.owned[f.Name] = props
	}

	b := graph.NewBuilder()
	for i := range kinds {
		k := kinds[i]
		if k.Type == "" {
			k.Type = k.Name
		}
		k.Facets = append([]string(nil), k.Facets...)
		for _, fname := range k.Facets {
			if _, ok := d.facets[fname]; !ok {
				problems.add("kind %q: unknown facet %q", k.Name, fname)
			}
		}
		d.kinds[k.Name] = &k
		b.Kind(k.Name, k.Facets...)
	}

	for i := range relationships {
		r := relationships[i]
		if r.Type == "" {
			r.Type = r.Name
		}
		if r.Match != nil {
			m := *r.Match
			if m.Source == "" || m.Target == "" {
				problems.add("relationship %q: match rule needs both source and target fields", r.Name)
			}
			r.Match = &m
		}
		d.relationships[r.Name] = &r
		b.Relationship(r.Name, r.Source, r.Target, r.Bidirectional)
	}

	g, err := b.Build()
	if err != nil {
		problems.add("%v", err)
	}
	if len(problems.Problems) > 0 {
		return nil, &problems
	}
	d.graph = g
	return d, nil
}

// Kind returns the kind declaration for name.
func (d *Description) Kind(name string) (*Kind, bool) {
	k, ok := d.kinds[name]
	return k, ok
}

// Facet returns the facet declaration for name.
func (d *Description) Facet(name string) (*Facet, bool) {
	f, ok := d.facets[name]
	return f, ok
}

// Relationship returns the relationship declaration for name.
func (d *Description) Relationship(name string) (*Relationship, bool) {
	r, ok := d.relationships[name]
	return r, ok
}

// HasKind reports whether a kind is declared.
func (d *Description) HasKind(name string) bool {
	_, ok := d.kinds[name]
	return ok
}

// HasFacet reports whether a facet is declared.
func (d *Description) HasFacet(name string) bool {
	_, ok := d.facets[name]
	return ok
}

// HasRelationship reports whether a relationship is declared.
func (d *Description) HasRelationship(name string) bool {
	_, ok := d.relationships[name]
	return ok
}

// Has reports whether a slot name of the given role is declared.
func (d *Description) Has(role Role, name string) bool {
	switch role {
	case RolePrimary:
		return d.HasKind(name)
	case RoleFacet:
		return d.HasFacet(name)
	case RoleRelationship:
		return d.HasRelationship(name)
	}
	return false
}

// TypeOf returns the resolved type of a declared slot name.
func (d *Description) TypeOf(role Role, name string) (string, bool) {
	switch role {
	case RolePrimary:
		if k, ok := d.kinds[name]; ok {
			return k.Type, true
		}
	case RoleFacet:
		if f, ok := d.facets[name]; ok {
			return f.Type, true
		}
	case RoleRelationship:
		if r, ok := d.relationships[name]; ok {
			return r.Type, true
		}
	}
	return "", false
}

// Owns reports whether field is one of the facet's owned properties.
func (d *Description) Owns(facet, field string) bool {
	_, ok := d.owned[facet][field]
	return ok
}

// KindNames returns declared kind names in lexical order.
func (d *Description) KindNames() []string {
	names := make([]string, 0, len(d.kinds))
	for name := range d.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relationships returns relationships in declaration order.
func (d *Description) Relationships() []*Relationship {
	edges := d.graph.AllEdges()
	out := make([]*Relationship, 0, len(edges))
	for _, e := range edges {
		out = append(out, d.relationships[e.Name])
	}
	return out
}

// Graph returns the kind graph.
func (d *Description) Graph() *graph.Graph {
	return d.graph
}
