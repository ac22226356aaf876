package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// rawRecord is the on-disk shape of one batch entry.
type rawRecord struct {
	Key    string          `json:"key"`
	Kind   string          `json:"kind"`
	Fields json.RawMessage `json:"fields"`
}

// LoadBatch reads a batch of records from a JSON file.
func LoadBatch(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	batch, err := DecodeBatch(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse records file %s: %w", path, err)
	}
	return batch, nil
}

// DecodeBatch decodes a batch from JSON. Accepted shapes are a top-level array
// of records, an object with a "records" array, or a single record object.
// Field order is preserved, including in nested objects, and numbers are kept
// as json.Number.
func DecodeBatch(r io.Reader) ([]*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []*Record{}, nil
	}

	var entries []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	case '{':
		var wrapper struct {
			Records []json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		if wrapper.Records != nil {
			entries = wrapper.Records
		} else {
			entries = []json.RawMessage{data}
		}
	default:
		return nil, fmt.Errorf("expected a JSON array or object, got %q", data[0])
	}

	batch := make([]*Record, 0, len(entries))
	for i, raw := range entries {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

func decodeRecord(raw json.RawMessage) (*Record, error) {
	var rr rawRecord
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, err
	}
	if rr.Kind == "" {
		return nil, fmt.Errorf("missing kind")
	}

	rec := New(rr.Key, rr.Kind)
	fields := bytes.TrimSpace(rr.Fields)
	if len(fields) == 0 || bytes.Equal(fields, []byte("null")) {
		return rec, nil
	}

	dec := json.NewDecoder(bytes.NewReader(fields))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	obj, ok := value.(*Fields)
	if !ok {
		return nil, fmt.Errorf("fields must be a JSON object")
	}
	rec.Fields = obj
	return rec, nil
}

// decodeValue walks the token stream so object keys keep document order.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := NewFields()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		list := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %q", delim)
}
