// Package ident derives deterministic slot identifiers from content
// fingerprints.
package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

// DefaultPrefix is prepended to every derived identifier.
const DefaultPrefix = "kb:"

// DefaultNamespace is the UUIDv5 namespace used when none is configured.
var DefaultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dbsmedya/entityplan"))

// Deriver maps (fingerprint, role, kind) to identifiers of the form
// <prefix><slug>-<uuid5>. It holds no mutable state.
type Deriver struct {
	namespace uuid.UUID
	prefix    string
}

// New creates a Deriver with an explicit namespace and prefix.
func New(namespace uuid.UUID, prefix string) *Deriver {
	return &Deriver{namespace: namespace, prefix: prefix}
}

// NewDefault creates a Deriver with the default namespace and prefix.
func NewDefault() *Deriver {
	return New(DefaultNamespace, DefaultPrefix)
}

// ParseNamespace parses a configured namespace; empty selects the default.
func ParseNamespace(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultNamespace, nil
	}
	ns, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid identifier namespace %q: %w", s, err)
	}
	return ns, nil
}

// Namespace returns the UUIDv5 namespace.
func (d *Deriver) Namespace() uuid.UUID {
	return d.namespace
}

// Prefix returns the identifier prefix.
func (d *Deriver) Prefix() string {
	return d.prefix
}

// DeriveID derives the identifier of a primary or facet slot.
func (d *Deriver) DeriveID(fp record.Fingerprint, role schema.Role, kind string) string {
	return d.format(kind, string(role)+"|"+kind+"|"+fp.String())
}

// DeriveRelationshipID derives the identifier of a relationship slot. The
// participant order is significant; callers fix it with OrderParticipants.
func (d *Deriver) DeriveRelationshipID(src, tgt record.Fingerprint, kind string) string {
	return d.format(kind, string(schema.RoleRelationship)+"|"+kind+"|"+src.String()+"|"+tgt.String())
}

func (d *Deriver) format(kind, name string) string {
	id := uuid.NewSHA1(d.namespace, []byte(name))
	return d.prefix + Slug(kind) + "-" + id.String()
}

// Slug lowercases a kind name and drops everything but ASCII letters and
// digits.
func Slug(kind string) string {
	var sb strings.Builder
	sb.Grow(len(kind))
	for _, r := range strings.ToLower(kind) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "slot"
	}
	return sb.String()
}

// Participant is one end of a relationship slot.
type Participant struct {
	Kind        string
	Fingerprint record.Fingerprint
}

// Less orders participants by kind name, then by fingerprint hex.
func (p Participant) Less(o Participant) bool {
	if p.Kind != o.Kind {
		return p.Kind < o.Kind
	}
	return p.Fingerprint.String() < o.Fingerprint.String()
}

// OrderParticipants returns (source, target) for a relationship. Directed
// relationships keep the declared direction: a is expected to be the
// source, and is swapped only when b alone is of the source kind. For a
// directed self-kind relationship the caller's order is the direction.
// Bidirectional ones are put in canonical order so that the pair derives
// one id regardless of which record was seen first.
func OrderParticipants(rel *schema.Relationship, a, b Participant) (Participant, Participant) {
	if rel.Undirected() {
		if b.Less(a) {
			return b, a
		}
		return a, b
	}
	if a.Kind != rel.Source && b.Kind == rel.Source {
		return b, a
	}
	return a, b
}
