package planner

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dbsmedya/entityplan/internal/ident"
	"github.com/dbsmedya/entityplan/internal/plan"
	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

// planRelationships derives one slot per concrete participant pair of every
// needed relationship, in declaration order. A pair of two unchanged
// records keeps its prior slot.
func (p *Planner) planRelationships(ctx context.Context, prev *plan.Snapshot, accepted []*candidate, needed map[string]struct{}, stats *Stats) map[string]*plan.Slot {
	_, span := p.tel.start(ctx, "planner.relationships", attribute.Int("entityplan.relationship_kinds", len(needed)))
	defer span.End()

	byKind := make(map[string][]*candidate)
	for _, c := range accepted {
		byKind[c.rec.Kind] = append(byKind[c.rec.Kind], c)
	}

	out := make(map[string]*plan.Slot)
	for _, rel := range p.schema.Relationships() {
		if _, ok := needed[rel.Name]; !ok {
			continue
		}
		sources, targets := byKind[rel.Source], byKind[rel.Target]
		if len(sources) == 0 || len(targets) == 0 {
			continue
		}

		pairs(rel, sources, targets, func(a, b *candidate) {
			src, tgt := ident.OrderParticipants(rel,
				ident.Participant{Kind: a.rec.Kind, Fingerprint: a.fp},
				ident.Participant{Kind: b.rec.Kind, Fingerprint: b.fp},
			)
			key := plan.RelationshipKey(rel.Name, src.Fingerprint, tgt.Fingerprint)
			if _, done := out[key]; done {
				return
			}
			if a.class == plan.Unchanged && b.class == plan.Unchanged {
				if prior, ok := prev.Relationships[key]; ok {
					out[key] = prior.Clone()
					stats.SlotsReused++
					return
				}
			}
			out[key] = &plan.Slot{
				ID:           p.deriver.DeriveRelationshipID(src.Fingerprint, tgt.Fingerprint, rel.Name),
				Role:         schema.RoleRelationship,
				Kind:         rel.Name,
				Type:         rel.Type,
				Fingerprints: []record.Fingerprint{src.Fingerprint, tgt.Fingerprint},
			}
			stats.SlotsDerived++
		})
	}

	span.SetAttributes(attribute.Int("entityplan.relationships", len(out)))
	return out
}

// pairs calls fn for every (source, target) pair the relationship links, in
// batch order. a always comes from the sources and b from the targets, so a
// directed self-kind relationship keeps its direction. Without a match rule
// every source pairs with every target; with one, only pairs whose source
// field equals the target field do. A record never pairs with itself.
func pairs(rel *schema.Relationship, sources, targets []*candidate, fn func(a, b *candidate)) {
	if rel.Match == nil {
		for _, a := range sources {
			for _, b := range targets {
				if a != b {
					fn(a, b)
				}
			}
		}
		return
	}

	index := make(map[string][]*candidate, len(targets))
	for _, b := range targets {
		if v, ok := matchValue(b.rec, rel.Match.Target); ok {
			index[v] = append(index[v], b)
		}
	}
	for _, a := range sources {
		v, ok := matchValue(a.rec, rel.Match.Source)
		if !ok {
			continue
		}
		for _, b := range index[v] {
			if a != b {
				fn(a, b)
			}
		}
	}
}

// matchValue returns the canonical form of a field for equality matching.
// Absent and null fields never match.
func matchValue(rec *record.Record, field string) (string, bool) {
	v, ok := rec.Get(field)
	if !ok || v == nil {
		return "", false
	}
	canonical, err := record.CanonicalValue(v)
	if err != nil {
		return "", false
	}
	return string(canonical), true
}
