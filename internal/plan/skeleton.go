package plan

import (
	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

// Property names used to link skeleton nodes.
const (
	HasFacetProperty = "uco-core:hasFacet"
	SourceProperty   = "uco-core:source"
	TargetProperty   = "uco-core:target"
)

// Ref is a node reference.
type Ref struct {
	ID string `json:"@id"`
}

// SkeletonNode is an identifier/type pair with the structural links between
// planned slots. Data properties are filled in downstream.
type SkeletonNode struct {
	ID       string `json:"@id"`
	Type     string `json:"@type"`
	HasFacet []Ref  `json:"uco-core:hasFacet,omitempty"`
	Source   *Ref   `json:"uco-core:source,omitempty"`
	Target   *Ref   `json:"uco-core:target,omitempty"`
}

// Skeleton is the node graph the graph-assembly step populates.
type Skeleton struct {
	Graph []SkeletonNode `json:"@graph"`
}

// Skeleton emits one node per slot. Primary nodes reference their facet
// nodes; relationship nodes reference the primary nodes of their source and
// target. Nodes follow record order, then relationship order.
func (p *Plan) Skeleton() *Skeleton {
	primaryOf := make(map[record.Fingerprint]string, len(p.Records))
	sk := &Skeleton{Graph: make([]SkeletonNode, 0, p.SlotCount())}

	for _, rp := range p.Records {
		var primary *SkeletonNode
		var facets []SkeletonNode
		for _, s := range rp.Slots {
			node := SkeletonNode{ID: s.ID, Type: s.Type}
			switch s.Role {
			case schema.RolePrimary:
				primaryOf[rp.Fingerprint] = s.ID
				n := node
				primary = &n
			case schema.RoleFacet:
				facets = append(facets, node)
			}
		}
		if primary == nil {
			continue
		}
		for _, f := range facets {
			primary.HasFacet = append(primary.HasFacet, Ref{ID: f.ID})
		}
		sk.Graph = append(sk.Graph, *primary)
		sk.Graph = append(sk.Graph, facets...)
	}

	for _, s := range p.Relationships {
		node := SkeletonNode{ID: s.ID, Type: s.Type}
		if len(s.Fingerprints) == 2 {
			if id, ok := primaryOf[s.Fingerprints[0]]; ok {
				node.Source = &Ref{ID: id}
			}
			if id, ok := primaryOf[s.Fingerprints[1]]; ok {
				node.Target = &Ref{ID: id}
			}
		}
		sk.Graph = append(sk.Graph, node)
	}

	return sk
}
