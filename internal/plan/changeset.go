package plan

import (
	"fmt"
	"sort"
)

// Changeset lists the row-level mutations that turn one snapshot into the
// next. Record rows are listed by logical key, relationship rows by
// relationship key. All lists are sorted.
type Changeset struct {
	InsertedRecords       []string `json:"insertedRecords,omitempty"`
	ReplacedRecords       []string `json:"replacedRecords,omitempty"`
	DeletedRecords        []string `json:"deletedRecords,omitempty"`
	InsertedRelationships []string `json:"insertedRelationships,omitempty"`
	ReplacedRelationships []string `json:"replacedRelationships,omitempty"`
	DeletedRelationships  []string `json:"deletedRelationships,omitempty"`
}

// ComputeChangeset compares two snapshots row by row.
func ComputeChangeset(prev, next *Snapshot) Changeset {
	prev, next = orEmpty(prev), orEmpty(next)
	var cs Changeset

	for key, row := range next.Records {
		old, ok := prev.Records[key]
		switch {
		case !ok:
			cs.InsertedRecords = append(cs.InsertedRecords, key)
		case !old.Equal(row):
			cs.ReplacedRecords = append(cs.ReplacedRecords, key)
		}
	}
	for key := range prev.Records {
		if _, ok := next.Records[key]; !ok {
			cs.DeletedRecords = append(cs.DeletedRecords, key)
		}
	}

	for key, slot := range next.Relationships {
		old, ok := prev.Relationships[key]
		switch {
		case !ok:
			cs.InsertedRelationships = append(cs.InsertedRelationships, key)
		case !old.Equal(slot):
			cs.ReplacedRelationships = append(cs.ReplacedRelationships, key)
		}
	}
	for key := range prev.Relationships {
		if _, ok := next.Relationships[key]; !ok {
			cs.DeletedRelationships = append(cs.DeletedRelationships, key)
		}
	}

	for _, list := range [][]string{
		cs.InsertedRecords, cs.ReplacedRecords, cs.DeletedRecords,
		cs.InsertedRelationships, cs.ReplacedRelationships, cs.DeletedRelationships,
	} {
		sort.Strings(list)
	}
	return cs
}

// IsEmpty reports whether the changeset carries no mutation.
func (c Changeset) IsEmpty() bool {
	return c.Size() == 0
}

// Size returns the total number of row mutations.
func (c Changeset) Size() int {
	return len(c.InsertedRecords) + len(c.ReplacedRecords) + len(c.DeletedRecords) +
		len(c.InsertedRelationships) + len(c.ReplacedRelationships) + len(c.DeletedRelationships)
}

// UpsertedRecords returns inserted and replaced record keys.
func (c Changeset) UpsertedRecords() []string {
	return mergeSorted(c.InsertedRecords, c.ReplacedRecords)
}

// UpsertedRelationships returns inserted and replaced relationship keys.
func (c Changeset) UpsertedRelationships() []string {
	return mergeSorted(c.InsertedRelationships, c.ReplacedRelationships)
}

// Summary renders the changeset counts on one line.
func (c Changeset) Summary() string {
	return fmt.Sprintf("records +%d ~%d -%d, relationships +%d ~%d -%d",
		len(c.InsertedRecords), len(c.ReplacedRecords), len(c.DeletedRecords),
		len(c.InsertedRelationships), len(c.ReplacedRelationships), len(c.DeletedRelationships))
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Strings(out)
	return out
}
