// Package graph provides the kind graph: entity kinds as nodes and declared
// relationships as directed edges between them.
package graph

// Node represents an entity kind.
type Node struct {
	Name   string   // Kind name
	Facets []string // Facet names attachable to the kind
}

// Edge represents a declared relationship from a source kind to a target kind.
type Edge struct {
	Name          string // Relationship name
	From          string // Source kind
	To            string // Target kind
	Bidirectional bool
}

// Graph holds every kind and relationship of one schema.
type Graph struct {
	Nodes    map[string]*Node    // kind name -> node
	Outgoing map[string][]string // kind name -> relationship names where it is the source
	Incoming map[string][]string // kind name -> relationship names where it is the target
	edges    map[string]*Edge    // relationship name -> edge
	order    []string            // relationship names in declaration order
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Outgoing: make(map[string][]string),
		Incoming: make(map[string][]string),
		edges:    make(map[string]*Edge),
	}
}

// AddNode adds a kind node to the graph.
// If node is nil, a new node with default values is created.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{Name: name}
	}
	node.Name = name
	g.Nodes[name] = node
}

// AddEdge adds a relationship edge and maintains the reverse mapping for
// target lookups. Duplicate names are rejected by the Builder.
func (g *Graph) AddEdge(e *Edge) {
	g.edges[e.Name] = e
	g.order = append(g.order, e.Name)
	g.Outgoing[e.From] = append(g.Outgoing[e.From], e.Name)
	if e.To != e.From {
		g.Incoming[e.To] = append(g.Incoming[e.To], e.Name)
	}
}

// GetEdge returns the edge for a relationship name, or nil if not found.
func (g *Graph) GetEdge(name string) *Edge {
	return g.edges[name]
}

// GetNode returns the node for a kind name, or nil if not found.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// HasNode returns true if the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	return g.GetNode(name) != nil
}

// HasEdge returns true if a relationship with the given name exists.
func (g *Graph) HasEdge(name string) bool {
	return g.GetEdge(name) != nil
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.order)
}

// AllEdges returns every edge in declaration order.
func (g *Graph) AllEdges() []*Edge {
	edges := make([]*Edge, 0, len(g.order))
	for _, name := range g.order {
		edges = append(edges, g.edges[name])
	}
	return edges
}

// EdgesFor returns the relationships a kind participates in, as source or
// as target, in declaration order and without duplicates.
func (g *Graph) EdgesFor(kind string) []*Edge {
	var edges []*Edge
	for _, name := range g.order {
		e := g.edges[name]
		if e.From == kind || e.To == kind {
			edges = append(edges, e)
		}
	}
	return edges
}

// Counterpart returns the kind on the other end of an edge from kind.
// For a self-relationship it returns kind itself.
func (e *Edge) Counterpart(kind string) string {
	if e.From == kind {
		return e.To
	}
	return e.From
}

// InDegree returns the number of relationships targeting a kind.
func (g *Graph) InDegree(name string) int {
	return len(g.Incoming[name])
}

// OutDegree returns the number of relationships sourced at a kind.
func (g *Graph) OutDegree(name string) int {
	return len(g.Outgoing[name])
}

// IsolatedNodes returns kinds that take part in no relationship.
func (g *Graph) IsolatedNodes() []string {
	var isolated []string
	for name := range g.Nodes {
		if g.OutDegree(name) == 0 && g.InDegree(name) == 0 {
			isolated = append(isolated, name)
		}
	}
	return isolated
}
