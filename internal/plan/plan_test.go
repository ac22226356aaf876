package plan

import (
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
)

func fp(s string) record.Fingerprint {
	return sha256.Sum256([]byte(s))
}

func row(key, kind, content string, facets ...string) *Row {
	f := fp(content)
	r := &Row{
		Key:         key,
		Kind:        kind,
		Fingerprint: f,
		Slots: []Slot{{
			ID:           "kb:" + key + "-primary",
			Role:         schema.RolePrimary,
			Kind:         kind,
			Type:         "t:" + kind,
			Fingerprints: []record.Fingerprint{f},
		}},
	}
	for _, facet := range facets {
		r.Slots = append(r.Slots, Slot{
			ID:           "kb:" + key + "-" + facet,
			Role:         schema.RoleFacet,
			Kind:         facet,
			Type:         "t:" + facet,
			Fingerprints: []record.Fingerprint{f},
		})
	}
	return r
}

func relationship(kind string, src, tgt *Row) *Slot {
	return &Slot{
		ID:           "kb:" + kind + "-" + src.Key + "-" + tgt.Key,
		Role:         schema.RoleRelationship,
		Kind:         kind,
		Type:         "t:" + kind,
		Fingerprints: []record.Fingerprint{src.Fingerprint, tgt.Fingerprint},
	}
}

func sampleSnapshot() *Snapshot {
	s := NewSnapshot()
	dir := row("d1", "Directory", "dir")
	file := row("f1", "File", "file", "FileFacet")
	s.Records[dir.Key] = dir
	s.Records[file.Key] = file
	s.Relationships[RelationshipKey("Contains", dir.Fingerprint, file.Fingerprint)] = relationship("Contains", dir, file)
	return s
}

func TestDiff(t *testing.T) {
	prev := sampleSnapshot()

	current := []Observation{
		{Key: "d1", Kind: "Directory", Fingerprint: fp("dir")},
		{Key: "f1", Kind: "File", Fingerprint: fp("file-edited")},
		{Key: "n1", Kind: "File", Fingerprint: fp("new")},
	}
	d := Diff(prev, current, nil)

	assert.Equal(t, Unchanged, d.Of("d1"))
	assert.Equal(t, Changed, d.Of("f1"))
	assert.Equal(t, New, d.Of("n1"))
	assert.Empty(t, d.Removed)
	assert.Equal(t, map[Classification]int{New: 1, Unchanged: 1, Changed: 1, Removed: 0}, d.Counts())
}

func TestDiff_RemovedAndForced(t *testing.T) {
	prev := sampleSnapshot()

	current := []Observation{{Key: "f1", Kind: "File", Fingerprint: fp("file")}}
	d := Diff(prev, current, map[string]struct{}{"f1": {}})

	assert.Equal(t, Changed, d.Of("f1"))
	assert.Equal(t, []string{"f1"}, d.Invalidated)
	assert.Equal(t, []string{"d1"}, d.Removed)
	assert.Equal(t, 1, d.Count(Removed))
}

func TestDiff_NilPrior(t *testing.T) {
	d := Diff(nil, []Observation{{Key: "a", Kind: "File", Fingerprint: fp("a")}}, nil)
	assert.Equal(t, New, d.Of("a"))

	d = Diff(nil, nil, nil)
	assert.Empty(t, d.Classes)
	assert.Empty(t, d.Removed)
}

func TestComputeChangeset(t *testing.T) {
	prev := sampleSnapshot()

	t.Run("identical snapshots", func(t *testing.T) {
		cs := ComputeChangeset(prev, prev.Clone())
		assert.True(t, cs.IsEmpty())
		assert.Equal(t, 0, cs.Size())
	})

	t.Run("insert replace delete", func(t *testing.T) {
		next := prev.Clone()
		delete(next.Records, "d1")
		next.Relationships = map[string]*Slot{}
		next.Records["f1"].Slots[0].Type = "t:Other"
		extra := row("n1", "File", "new")
		next.Records["n1"] = extra
		relKey := RelationshipKey("DuplicateOf", extra.Fingerprint, next.Records["f1"].Fingerprint)
		next.Relationships[relKey] = relationship("DuplicateOf", extra, next.Records["f1"])

		cs := ComputeChangeset(prev, next)
		assert.Equal(t, []string{"n1"}, cs.InsertedRecords)
		assert.Equal(t, []string{"f1"}, cs.ReplacedRecords)
		assert.Equal(t, []string{"d1"}, cs.DeletedRecords)
		assert.Equal(t, []string{relKey}, cs.InsertedRelationships)
		assert.Len(t, cs.DeletedRelationships, 1)
		assert.Equal(t, []string{"f1", "n1"}, cs.UpsertedRecords())
		assert.Equal(t, []string{relKey}, cs.UpsertedRelationships())
		assert.Equal(t, "records +1 ~1 -1, relationships +1 ~0 -1", cs.Summary())
	})

	t.Run("nil snapshots", func(t *testing.T) {
		cs := ComputeChangeset(nil, prev)
		assert.Len(t, cs.InsertedRecords, 2)
		assert.Len(t, cs.InsertedRelationships, 1)
		assert.True(t, ComputeChangeset(nil, nil).IsEmpty())
	})
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := sampleSnapshot()
	c := s.Clone()

	c.Records["f1"].Slots[0].ID = "mutated"
	for _, rel := range c.Relationships {
		rel.Fingerprints[0] = fp("mutated")
	}

	assert.Equal(t, "kb:f1-primary", s.Records["f1"].Slots[0].ID)
	for _, rel := range s.Relationships {
		assert.Equal(t, fp("dir"), rel.Fingerprints[0])
	}
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	s := sampleSnapshot()
	s.Version = 3

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, int64(3), decoded.Version)
	assert.True(t, ComputeChangeset(s, &decoded).IsEmpty())
}

func TestSnapshot_TypeMapAndCounts(t *testing.T) {
	s := sampleSnapshot()

	types := s.TypeMap()
	assert.Len(t, types, 4)
	assert.Equal(t, "t:FileFacet", types["kb:f1-FileFacet"])
	assert.Equal(t, 4, s.SlotCount())
	assert.Equal(t, []string{"d1", "f1"}, s.Keys())
	assert.False(t, s.IsEmpty())
	assert.True(t, NewSnapshot().IsEmpty())

	var nilSnap *Snapshot
	assert.True(t, nilSnap.IsEmpty())
	assert.NotNil(t, nilSnap.Normalize().Records)
}

func TestBuildIndex(t *testing.T) {
	s := sampleSnapshot()
	ix := BuildIndex(s)

	assert.Equal(t, []string{"f1"}, ix.OwnersOf("kb:f1-FileFacet"))
	assert.Equal(t, []string{"d1", "f1"}, ix.OwnersOf("kb:Contains-d1-f1"))
	assert.Equal(t, []string{"f1"}, ix.KeysOfKind("File"))
	assert.Equal(t, []string{"d1"}, ix.KeysOf(fp("dir")))
	assert.Empty(t, ix.OwnersOf("kb:missing"))
}

func TestBuild(t *testing.T) {
	s := sampleSnapshot()
	p := Build(s, []Entry{
		{Key: "f1", Classification: Changed},
		{Key: "d1", Classification: Unchanged},
		{Key: "gone", Classification: New},
	})

	require.Len(t, p.Records, 2)
	assert.Equal(t, "f1", p.Records[0].Key)
	assert.Equal(t, Changed, p.Records[0].Classification)
	assert.Equal(t, []string{"kb:f1-primary"}, p.Records[0].IDs(schema.RolePrimary))
	assert.Equal(t, []string{"kb:f1-FileFacet"}, p.Records[0].IDs(schema.RoleFacet))
	assert.Equal(t, []string{"kb:Contains-d1-f1"}, p.Records[0].IDs(schema.RoleRelationship))
	assert.Equal(t, []string{"kb:Contains-d1-f1"}, p.Records[1].Relationships)

	assert.Equal(t, 4, p.SlotCount())
	assert.Len(t, p.IDs(), 4)
	require.NoError(t, p.Validate())

	rp, ok := p.Record("d1")
	require.True(t, ok)
	assert.Equal(t, "Directory", rp.Kind)
	_, ok = p.Record("gone")
	assert.False(t, ok)
}

func TestBuild_Empty(t *testing.T) {
	p := Build(nil, nil)
	assert.Empty(t, p.TypeMap)
	assert.Empty(t, p.Records)
	assert.NoError(t, p.Validate())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"typeMap":{},"records":[],"relationships":[]}`, string(data))
}

func TestValidate_Errors(t *testing.T) {
	p := Build(sampleSnapshot(), []Entry{{Key: "d1"}, {Key: "f1"}})
	p.TypeMap["kb:extra"] = "t:Extra"
	assert.Error(t, p.Validate())

	p = Build(sampleSnapshot(), []Entry{{Key: "d1"}, {Key: "f1"}})
	p.Records[1].Slots[0].ID = p.Records[0].Slots[0].ID
	assert.Error(t, p.Validate())
}

func TestSkeleton(t *testing.T) {
	p := Build(sampleSnapshot(), []Entry{{Key: "d1"}, {Key: "f1"}})
	sk := p.Skeleton()

	require.Len(t, sk.Graph, 4)
	assert.Equal(t, SkeletonNode{ID: "kb:d1-primary", Type: "t:Directory"}, sk.Graph[0])
	assert.Equal(t, "kb:f1-primary", sk.Graph[1].ID)
	assert.Equal(t, []Ref{{ID: "kb:f1-FileFacet"}}, sk.Graph[1].HasFacet)
	assert.Equal(t, "kb:f1-FileFacet", sk.Graph[2].ID)

	rel := sk.Graph[3]
	require.NotNil(t, rel.Source)
	require.NotNil(t, rel.Target)
	assert.Equal(t, "kb:d1-primary", rel.Source.ID)
	assert.Equal(t, "kb:f1-primary", rel.Target.ID)

	data, err := json.Marshal(sk.Graph[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"`+HasFacetProperty+`":[{"@id":"kb:f1-FileFacet"}]`)

	data, err = json.Marshal(rel)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"`+SourceProperty+`"`)
	assert.Contains(t, string(data), `"`+TargetProperty+`"`)
}
