package planner

import (
	"time"

	"github.com/dbsmedya/entityplan/internal/plan"
)

// RecordFailure is a record excluded from the plan.
type RecordFailure struct {
	Index int    // position in the batch
	Key   string // record key as supplied, may be empty
	Kind  string
	Err   error
}

// Report is the partial-failure report of a run.
type Report struct {
	Failures []RecordFailure
	Warnings []error
}

// HasFailures reports whether any record was excluded.
func (r *Report) HasFailures() bool {
	return len(r.Failures) > 0
}

// Stats summarizes a run.
type Stats struct {
	Records      map[plan.Classification]int
	SlotsDerived int
	SlotsReused  int
	Duration     time.Duration
}

// Result is the outcome of a planning run.
type Result struct {
	Plan      *plan.Plan
	Prior     *plan.Snapshot // snapshot the run planned against
	Snapshot  *plan.Snapshot // snapshot after the run
	Delta     *plan.Delta
	Changes   plan.Changeset
	Report    Report
	Stats     Stats
	Committed bool
}
