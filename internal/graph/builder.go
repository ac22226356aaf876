package graph

import (
	"fmt"
)

// Builder constructs a kind graph from node and edge declarations.
type Builder struct {
	nodes []*Node
	edges []*Edge
}

// NewBuilder creates a new graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Kind declares a kind node.
func (b *Builder) Kind(name string, facets ...string) *Builder {
	b.nodes = append(b.nodes, &Node{Name: name, Facets: facets})
	return b
}

// Relationship declares a relationship edge.
func (b *Builder) Relationship(name, from, to string, bidirectional bool) *Builder {
	b.edges = append(b.edges, &Edge{Name: name, From: from, To: to, Bidirectional: bidirectional})
	return b
}

// Build constructs the graph. It fails on empty names, duplicate kinds or
// relationships, and relationships whose endpoints are not declared kinds.
func (b *Builder) Build() (*Graph, error) {
	g := NewGraph()

	for _, n := range b.nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("kind name is empty")
		}
		if g.HasNode(n.Name) {
			return nil, fmt.Errorf("duplicate kind %q", n.Name)
		}
		g.AddNode(n.Name, n)
	}

	for _, e := range b.edges {
		if e.Name == "" {
			return nil, fmt.Errorf("relationship name is empty (%s -> %s)", e.From, e.To)
		}
		if g.HasEdge(e.Name) {
			return nil, fmt.Errorf("duplicate relationship %q", e.Name)
		}
		if g.HasNode(e.Name) {
			return nil, fmt.Errorf("relationship %q clashes with a kind of the same name", e.Name)
		}
		if !g.HasNode(e.From) {
			return nil, fmt.Errorf("relationship %q: unknown source kind %q", e.Name, e.From)
		}
		if !g.HasNode(e.To) {
			return nil, fmt.Errorf("relationship %q: unknown target kind %q", e.Name, e.To)
		}
		g.AddEdge(e)
	}

	return g, nil
}
