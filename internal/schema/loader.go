package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// document is the YAML layout of a schema file.
type document struct {
	Kinds         map[string]Kind  `yaml:"kinds"`
	Facets        map[string]Facet `yaml:"facets"`
	Relationships []Relationship   `yaml:"relationships"`
}

// Load reads and validates a schema file.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a YAML schema document. Unknown keys are
// rejected.
func Parse(data []byte) (*Description, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	kinds := make([]Kind, 0, len(doc.Kinds))
	for _, name := range sortedNames(doc.Kinds) {
		k := doc.Kinds[name]
		k.Name = name
		kinds = append(kinds, k)
	}

	facets := make([]Facet, 0, len(doc.Facets))
	for _, name := range sortedNames(doc.Facets) {
		f := doc.Facets[name]
		f.Name = name
		facets = append(facets, f)
	}

	return New(kinds, facets, doc.Relationships)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
