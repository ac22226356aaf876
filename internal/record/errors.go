package record

import (
	"errors"
	"fmt"
)

// ErrUnhashable is the sentinel matched by UnhashableRecordError.
var ErrUnhashable = errors.New("record cannot be fingerprinted")

// UnhashableRecordError reports a field value that has no canonical form.
type UnhashableRecordError struct {
	Key    string
	Kind   string
	Field  string // dotted path of the offending value, empty when not field-specific
	Reason string
}

func (e *UnhashableRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unhashable record (key=%q kind=%q): %s", e.Key, e.Kind, e.Reason)
	}
	return fmt.Sprintf("unhashable record (key=%q kind=%q): field %s: %s", e.Key, e.Kind, e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrUnhashable).
func (e *UnhashableRecordError) Is(target error) bool {
	return target == ErrUnhashable
}
