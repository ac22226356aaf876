package plan

import (
	"sort"

	"github.com/dbsmedya/entityplan/internal/record"
)

// Classification is the diff outcome of one record against the prior
// snapshot.
type Classification string

const (
	New       Classification = "new"
	Unchanged Classification = "unchanged"
	Changed   Classification = "changed"
	Removed   Classification = "removed"
)

// Observation is a fingerprinted record of the current batch.
type Observation struct {
	Key         string
	Kind        string
	Fingerprint record.Fingerprint
}

// Delta is the classification of a batch against a prior snapshot.
type Delta struct {
	Classes     map[string]Classification // current key -> classification
	Removed     []string                  // prior keys absent from the batch, sorted
	Invalidated []string                  // keys forced from unchanged to changed, sorted
}

// Of returns the classification of a current key.
func (d *Delta) Of(key string) Classification {
	return d.Classes[key]
}

// Count returns how many records fall in a classification.
func (d *Delta) Count(c Classification) int {
	if c == Removed {
		return len(d.Removed)
	}
	n := 0
	for _, got := range d.Classes {
		if got == c {
			n++
		}
	}
	return n
}

// Counts returns the number of records per classification.
func (d *Delta) Counts() map[Classification]int {
	return map[Classification]int{
		New:       d.Count(New),
		Unchanged: d.Count(Unchanged),
		Changed:   d.Count(Changed),
		Removed:   d.Count(Removed),
	}
}

// Diff classifies the current batch against the prior snapshot. A record is
// new when its key has no prior row, unchanged when the prior row carries the
// same fingerprint, and changed otherwise. Keys in forced are classified as
// changed even when their fingerprint matches. Prior keys missing from the
// batch are removed.
func Diff(prev *Snapshot, current []Observation, forced map[string]struct{}) *Delta {
	prev = orEmpty(prev)
	d := &Delta{
		Classes: make(map[string]Classification, len(current)),
	}

	for _, obs := range current {
		prior, ok := prev.Records[obs.Key]
		switch {
		case !ok:
			d.Classes[obs.Key] = New
		case prior.Fingerprint != obs.Fingerprint || prior.Kind != obs.Kind:
			d.Classes[obs.Key] = Changed
		default:
			if _, force := forced[obs.Key]; force {
				d.Classes[obs.Key] = Changed
				d.Invalidated = append(d.Invalidated, obs.Key)
				continue
			}
			d.Classes[obs.Key] = Unchanged
		}
	}

	for key := range prev.Records {
		if _, ok := d.Classes[key]; !ok {
			d.Removed = append(d.Removed, key)
		}
	}
	sort.Strings(d.Removed)
	sort.Strings(d.Invalidated)

	return d
}
