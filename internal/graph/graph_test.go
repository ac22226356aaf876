package graph

import (
	"sort"
	"strings"
	"testing"
)

func buildFileGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewBuilder().
		Kind("Directory", "PathFacet").
		Kind("File", "FileFacet").
		Kind("Host").
		Relationship("Contains", "Directory", "File", false).
		Relationship("LinkedTo", "File", "File", false).
		Relationship("Peers", "Directory", "Directory", true).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return g
}

func TestBuild_Structure(t *testing.T) {
	g := buildFileGraph(t)

	if g.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", g.NodeCount())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", g.EdgeCount())
	}
	if !g.HasNode("File") || g.HasNode("Missing") {
		t.Error("HasNode returned unexpected result")
	}
	if n := g.GetNode("File"); n == nil || len(n.Facets) != 1 || n.Facets[0] != "FileFacet" {
		t.Errorf("GetNode(File) = %+v", n)
	}

	// Self-relationships count once on the outgoing side only.
	if g.OutDegree("File") != 1 || g.InDegree("File") != 1 {
		t.Errorf("File degrees = out %d in %d, want 1/1", g.OutDegree("File"), g.InDegree("File"))
	}
	if g.OutDegree("Directory") != 2 || g.InDegree("Directory") != 0 {
		t.Errorf("Directory degrees = out %d in %d, want 2/0", g.OutDegree("Directory"), g.InDegree("Directory"))
	}
}

func TestEdgesFor_DeclarationOrder(t *testing.T) {
	g := buildFileGraph(t)

	var names []string
	for _, e := range g.EdgesFor("File") {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "Contains,LinkedTo" {
		t.Errorf("EdgesFor(File) = %v, want [Contains LinkedTo]", names)
	}
	if len(g.EdgesFor("Host")) != 0 {
		t.Error("Host should have no edges")
	}

	all := g.AllEdges()
	if len(all) != 3 || all[0].Name != "Contains" || all[2].Name != "Peers" {
		t.Errorf("AllEdges() order unexpected: %v", all)
	}
}

func TestEdge_Counterpart(t *testing.T) {
	g := buildFileGraph(t)

	tests := []struct {
		edge  string
		from  string
		other string
	}{
		{"Contains", "Directory", "File"},
		{"Contains", "File", "Directory"},
		{"LinkedTo", "File", "File"},
		{"Peers", "Directory", "Directory"},
	}
	for _, tt := range tests {
		e := g.GetEdge(tt.edge)
		if e == nil {
			t.Fatalf("GetEdge(%q) = nil", tt.edge)
		}
		if got := e.Counterpart(tt.from); got != tt.other {
			t.Errorf("%s.Counterpart(%s) = %s, want %s", tt.edge, tt.from, got, tt.other)
		}
	}
	if g.GetEdge("Missing") != nil || g.HasEdge("Missing") {
		t.Error("unknown relationship should not resolve")
	}
}

func TestIsolatedNodes(t *testing.T) {
	g := buildFileGraph(t)
	isolated := g.IsolatedNodes()
	sort.Strings(isolated)
	if len(isolated) != 1 || isolated[0] != "Host" {
		t.Errorf("IsolatedNodes() = %v, want [Host]", isolated)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		wantErr string
	}{
		{"empty kind", NewBuilder().Kind(""), "kind name is empty"},
		{"duplicate kind", NewBuilder().Kind("A").Kind("A"), "duplicate kind"},
		{"empty relationship", NewBuilder().Kind("A").Relationship("", "A", "A", false), "relationship name is empty"},
		{"duplicate relationship", NewBuilder().Kind("A").Relationship("R", "A", "A", false).Relationship("R", "A", "A", false), "duplicate relationship"},
		{"clashing name", NewBuilder().Kind("A").Relationship("A", "A", "A", false), "clashes"},
		{"unknown source", NewBuilder().Kind("A").Relationship("R", "X", "A", false), "unknown source kind"},
		{"unknown target", NewBuilder().Kind("A").Relationship("R", "A", "X", false), "unknown target kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAddNode_Nil(t *testing.T) {
	g := NewGraph()
	g.AddNode("File", nil)
	if n := g.GetNode("File"); n == nil || n.Name != "File" {
		t.Errorf("AddNode(nil) created %+v", n)
	}
}
