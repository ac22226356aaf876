package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKind is matched by UnknownKindError.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrInvalidSchema is matched by InvalidSchemaError.
	ErrInvalidSchema = errors.New("invalid schema")
)

// UnknownKindError reports a record whose kind the schema does not declare.
type UnknownKindError struct {
	Kind string
	Key  string // record key, when the record carries one
}

func (e *UnknownKindError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("unknown kind %q", e.Kind)
	}
	return fmt.Sprintf("unknown kind %q (record %q)", e.Kind, e.Key)
}

// Is allows errors.Is(err, ErrUnknownKind).
func (e *UnknownKindError) Is(target error) bool {
	return target == ErrUnknownKind
}

// InvalidSchemaError collects every problem found while building a
// Description.
type InvalidSchemaError struct {
	Problems []string
}

func (e *InvalidSchemaError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *InvalidSchemaError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid schema:\n")
	for _, p := range e.Problems {
		sb.WriteString("  - ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Is allows errors.Is(err, ErrInvalidSchema).
func (e *InvalidSchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}
