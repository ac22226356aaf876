package plan

import (
	"sort"

	"github.com/dbsmedya/entityplan/internal/record"
)

// Index is the reverse lookup over a snapshot used to resolve invalidation
// targets.
type Index struct {
	bySlot        map[string][]string             // slot id -> owning record keys
	byKind        map[string][]string             // kind -> record keys
	byFingerprint map[record.Fingerprint][]string // fingerprint -> record keys
}

// BuildIndex derives the reverse index of a snapshot. A relationship slot is
// owned by the records of both participants.
func BuildIndex(s *Snapshot) *Index {
	ix := &Index{
		bySlot:        make(map[string][]string),
		byKind:        make(map[string][]string),
		byFingerprint: make(map[record.Fingerprint][]string),
	}
	if s == nil {
		return ix
	}

	for _, key := range s.Keys() {
		row := s.Records[key]
		ix.byKind[row.Kind] = append(ix.byKind[row.Kind], key)
		ix.byFingerprint[row.Fingerprint] = append(ix.byFingerprint[row.Fingerprint], key)
		for _, slot := range row.Slots {
			ix.bySlot[slot.ID] = append(ix.bySlot[slot.ID], key)
		}
	}

	for _, relKey := range s.RelationshipKeys() {
		slot := s.Relationships[relKey]
		for _, fp := range slot.Fingerprints {
			ix.bySlot[slot.ID] = appendUnique(ix.bySlot[slot.ID], ix.byFingerprint[fp]...)
		}
	}
	for id := range ix.bySlot {
		sort.Strings(ix.bySlot[id])
	}

	return ix
}

// OwnersOf returns the record keys owning a slot id.
func (ix *Index) OwnersOf(slotID string) []string {
	return ix.bySlot[slotID]
}

// KeysOfKind returns the record keys of a kind.
func (ix *Index) KeysOfKind(kind string) []string {
	return ix.byKind[kind]
}

// KeysOf returns the record keys carrying a fingerprint.
func (ix *Index) KeysOf(fp record.Fingerprint) []string {
	return ix.byFingerprint[fp]
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
