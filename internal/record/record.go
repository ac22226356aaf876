// Package record models planner input records and their content fingerprints.
package record

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Fields is the ordered field mapping carried by a Record.
type Fields = orderedmap.OrderedMap[string, any]

// Record is one unit of input data tagged with the entity kind an upstream
// classification step assigned to it.
//
// A Record must not be mutated after it has been fingerprinted.
type Record struct {
	Key    string // optional external key identifying the record's logical position
	Kind   string // entity kind name, looked up in the schema
	Fields *Fields
}

// New creates an empty record of the given kind.
func New(key, kind string) *Record {
	return &Record{
		Key:    key,
		Kind:   kind,
		Fields: orderedmap.NewOrderedMap[string, any](),
	}
}

// NewFields creates an empty ordered field mapping.
func NewFields() *Fields {
	return orderedmap.NewOrderedMap[string, any]()
}

// Set assigns a field value, preserving first-insertion order, and returns
// the record for chaining.
func (r *Record) Set(name string, value any) *Record {
	if r.Fields == nil {
		r.Fields = NewFields()
	}
	r.Fields.Set(name, value)
	return r
}

// Get returns a field value.
func (r *Record) Get(name string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	return r.Fields.Get(name)
}

// Has reports whether the record carries a field with the given name.
func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// FieldNames returns field names in insertion order.
func (r *Record) FieldNames() []string {
	if r.Fields == nil {
		return nil
	}
	return r.Fields.Keys()
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r.Fields == nil {
		return 0
	}
	return r.Fields.Len()
}

// LogicalKey returns the key a record is tracked under across runs: the
// collaborator-supplied key when present, otherwise its content identity.
func LogicalKey(r *Record, fp Fingerprint) string {
	if r.Key != "" {
		return r.Key
	}
	return ContentKey(fp)
}

// ContentKey is the logical key of a record that carries no external key.
func ContentKey(fp Fingerprint) string {
	return "fp:" + fp.String()
}
