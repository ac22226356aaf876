package planner

import (
	"errors"
	"fmt"

	"github.com/dbsmedya/entityplan/internal/schema"
)

var (
	// ErrSchemaMismatch is matched by SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidationTargetNotFound is matched by InvalidationTargetNotFoundError.
	ErrInvalidationTargetNotFound = errors.New("invalidation target not found")
	// ErrDuplicateRecord is matched by DuplicateRecordError.
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrAllRecordsFailed is returned when no record of a non-empty batch
	// could be planned.
	ErrAllRecordsFailed = errors.New("all records failed")
)

// SchemaMismatchError reports a previously planned record whose kind, facet
// or relationship no longer exists in the schema.
type SchemaMismatchError struct {
	Key  string
	Role schema.Role
	Name string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: record %q was planned with %s %q, which the schema no longer declares", e.Key, e.Role, e.Name)
}

// Is allows errors.Is(err, ErrSchemaMismatch).
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// InvalidationTargetNotFoundError is a warning for an invalidation target
// that matches nothing in the prior snapshot.
type InvalidationTargetNotFoundError struct {
	Target string
}

func (e *InvalidationTargetNotFoundError) Error() string {
	return fmt.Sprintf("invalidation target %q not found in prior plan", e.Target)
}

// Is allows errors.Is(err, ErrInvalidationTargetNotFound).
func (e *InvalidationTargetNotFoundError) Is(target error) bool {
	return target == ErrInvalidationTargetNotFound
}

// DuplicateRecordError reports a record excluded because an earlier record
// of the batch already occupies its logical key or carries identical
// content.
type DuplicateRecordError struct {
	Key         string
	DuplicateOf string // logical key of the record kept
	SameContent bool
}

func (e *DuplicateRecordError) Error() string {
	if e.SameContent {
		return fmt.Sprintf("duplicate record %q: identical content already planned as %q", e.Key, e.DuplicateOf)
	}
	return fmt.Sprintf("duplicate record key %q", e.Key)
}

// Is allows errors.Is(err, ErrDuplicateRecord).
func (e *DuplicateRecordError) Is(target error) bool {
	return target == ErrDuplicateRecord
}

// AllRecordsFailedError carries the per-record failures of a batch in which
// nothing could be planned.
type AllRecordsFailedError struct {
	Failures []RecordFailure
}

func (e *AllRecordsFailedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllRecordsFailed.Error()
	}
	return fmt.Sprintf("%s: %d records, first: %v", ErrAllRecordsFailed, len(e.Failures), e.Failures[0].Err)
}

// Is allows errors.Is(err, ErrAllRecordsFailed).
func (e *AllRecordsFailedError) Is(target error) bool {
	return target == ErrAllRecordsFailed
}

// Unwrap exposes the per-record errors to errors.Is and errors.As.
func (e *AllRecordsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
