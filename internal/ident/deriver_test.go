package ident

import (
	"crypto/sha256"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

func fp(s string) record.Fingerprint {
	return sha256.Sum256([]byte(s))
}

var idPattern = regexp.MustCompile(`^kb:[a-z0-9]+-[0-9a-f]{8}-[0-9a-f]{4}-5[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestDeriveID_Format(t *testing.T) {
	d := NewDefault()
	id := d.DeriveID(fp("a"), schema.RolePrimary, "File")

	assert.Regexp(t, idPattern, id)
	assert.Contains(t, id, "kb:file-")
}

func TestDeriveID_Deterministic(t *testing.T) {
	a := NewDefault().DeriveID(fp("a"), schema.RoleFacet, "FileFacet")
	b := NewDefault().DeriveID(fp("a"), schema.RoleFacet, "FileFacet")
	assert.Equal(t, a, b)
}

func TestDeriveID_InputsMatter(t *testing.T) {
	d := NewDefault()
	base := d.DeriveID(fp("a"), schema.RolePrimary, "File")

	tests := []struct {
		name string
		id   string
	}{
		{"fingerprint", d.DeriveID(fp("b"), schema.RolePrimary, "File")},
		{"role", d.DeriveID(fp("a"), schema.RoleFacet, "File")},
		{"kind", d.DeriveID(fp("a"), schema.RolePrimary, "Directory")},
		{"namespace", New(uuid.NameSpaceOID, DefaultPrefix).DeriveID(fp("a"), schema.RolePrimary, "File")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.id)
		})
	}
}

func TestDeriveRelationshipID_OrderMatters(t *testing.T) {
	d := NewDefault()
	ab := d.DeriveRelationshipID(fp("a"), fp("b"), "Contains")
	ba := d.DeriveRelationshipID(fp("b"), fp("a"), "Contains")

	assert.NotEqual(t, ab, ba)
	assert.Equal(t, ab, d.DeriveRelationshipID(fp("a"), fp("b"), "Contains"))
	assert.Contains(t, ab, "kb:contains-")
}

func TestPrefix(t *testing.T) {
	d := New(DefaultNamespace, "urn:x:")
	id := d.DeriveID(fp("a"), schema.RolePrimary, "File")
	assert.Regexp(t, `^urn:x:file-`, id)
	assert.Equal(t, "urn:x:", d.Prefix())
	assert.Equal(t, DefaultNamespace, d.Namespace())
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"File":                "file",
		"ContentDataFacet":    "contentdatafacet",
		"uco-observable:File": "ucoobservablefile",
		"Size Facet 2":        "sizefacet2",
		"---":                 "slot",
		"":                    "slot",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("")
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, ns)

	ns, err = ParseNamespace("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, uuid.NameSpaceURL, ns)

	_, err = ParseNamespace("not-a-uuid")
	assert.Error(t, err)
}

func TestOrderParticipants(t *testing.T) {
	dir := Participant{Kind: "Directory", Fingerprint: fp("z")}
	file := Participant{Kind: "File", Fingerprint: fp("a")}

	directed := &schema.Relationship{Name: "Contains", Source: "Directory", Target: "File"}
	src, tgt := OrderParticipants(directed, file, dir)
	assert.Equal(t, dir, src)
	assert.Equal(t, file, tgt)

	src, tgt = OrderParticipants(directed, dir, file)
	assert.Equal(t, dir, src)
	assert.Equal(t, file, tgt)

	// Bidirectional across kinds: kind name decides.
	bidi := &schema.Relationship{Name: "Near", Source: "File", Target: "Directory", Bidirectional: true}
	src, tgt = OrderParticipants(bidi, file, dir)
	assert.Equal(t, dir, src)
	assert.Equal(t, file, tgt)

	// Bidirectional same kind: fingerprint hex decides, independent of
	// argument order.
	f1 := Participant{Kind: "File", Fingerprint: fp("one")}
	f2 := Participant{Kind: "File", Fingerprint: fp("two")}
	dup := &schema.Relationship{Name: "DuplicateOf", Source: "File", Target: "File", Bidirectional: true}
	s1, t1 := OrderParticipants(dup, f1, f2)
	s2, t2 := OrderParticipants(dup, f2, f1)
	assert.Equal(t, s1, s2)
	assert.Equal(t, t1, t2)
	assert.True(t, s1.Fingerprint.String() < t1.Fingerprint.String())

	// Directed same kind: the caller's order is the declared direction.
	parentOf := &schema.Relationship{Name: "ParentOf", Source: "File", Target: "File"}
	for _, pair := range [][2]Participant{{f1, f2}, {f2, f1}} {
		src, tgt := OrderParticipants(parentOf, pair[0], pair[1])
		assert.Equal(t, pair[0], src)
		assert.Equal(t, pair[1], tgt)
	}
}
