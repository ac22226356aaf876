package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FingerprintSize is the digest length in bytes (256 bits).
const FingerprintSize = sha256.Size

// Fingerprint is a content digest of a record's canonical serialization.
type Fingerprint [FingerprintSize]byte

// String returns the lowercase hex form of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFingerprint parses the hex form produced by Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	if len(s) != hex.EncodedLen(FingerprintSize) {
		return fp, fmt.Errorf("invalid fingerprint length %d (want %d hex chars)", len(s), hex.EncodedLen(FingerprintSize))
	}
	if _, err := hex.Decode(fp[:], []byte(s)); err != nil {
		return fp, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return fp, nil
}

// Compute returns the fingerprint of a record.
//
// The digest covers the record's kind and fields (not its key). Field order,
// surrounding whitespace in strings, number spelling and timestamp offsets do
// not affect the result. Values that cannot be canonicalized produce an
// *UnhashableRecordError.
func Compute(r *Record) (Fingerprint, error) {
	canonical, err := Canonical(r)
	if err != nil {
		return Fingerprint{}, err
	}
	return sha256.Sum256(canonical), nil
}

// Canonical returns the canonical byte serialization that Compute hashes.
func Canonical(r *Record) ([]byte, error) {
	if r == nil {
		return nil, &UnhashableRecordError{Reason: "record is nil"}
	}

	c := &canonicalizer{}
	c.writeString("kind", strings.TrimSpace(r.Kind))
	c.buf.WriteByte('m')
	c.writeLen(r.Len())
	c.buf.WriteByte('{')
	for _, name := range sortedKeys(r.FieldNames()) {
		value, _ := r.Get(name)
		c.writeKey(name)
		if err := c.value(name, value); err != nil {
			return nil, c.unhashable(r, err)
		}
	}
	c.buf.WriteByte('}')

	return c.buf.Bytes(), nil
}

// CanonicalValue returns the canonical serialization of a single field value.
// Two values that fingerprint identically inside a record produce equal
// output here, so it is usable as a comparison key.
func CanonicalValue(v any) ([]byte, error) {
	c := &canonicalizer{}
	if err := c.value("", v); err != nil {
		return nil, err
	}
	return c.buf.Bytes(), nil
}

// maxNesting bounds how deep field values may nest. Values built in
// process can reference themselves; decoded JSON never does.
const maxNesting = 64

type canonicalizer struct {
	buf   bytes.Buffer
	depth int
}

// fieldError carries the path of the offending value up to Canonical.
type fieldError struct {
	path   string
	reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.path, e.reason)
}

func (c *canonicalizer) unhashable(r *Record, err error) error {
	fe, ok := err.(*fieldError)
	if !ok {
		return &UnhashableRecordError{Key: r.Key, Kind: r.Kind, Reason: err.Error()}
	}
	return &UnhashableRecordError{Key: r.Key, Kind: r.Kind, Field: fe.path, Reason: fe.reason}
}

func (c *canonicalizer) writeLen(n int) {
	c.buf.WriteString(strconv.Itoa(n))
	c.buf.WriteByte(':')
}

func (c *canonicalizer) writeKey(k string) {
	c.buf.WriteByte('k')
	c.writeLen(len(k))
	c.buf.WriteString(k)
}

func (c *canonicalizer) writeString(tag, s string) {
	c.buf.WriteString(tag)
	c.buf.WriteByte('=')
	c.writeTagged('s', s)
}

func (c *canonicalizer) writeTagged(tag byte, s string) {
	c.buf.WriteByte(tag)
	c.writeLen(len(s))
	c.buf.WriteString(s)
}

func (c *canonicalizer) value(path string, v any) error {
	if c.depth >= maxNesting {
		return &fieldError{path: path, reason: fmt.Sprintf("value nested deeper than %d levels (cyclic reference?)", maxNesting)}
	}
	c.depth++
	defer func() { c.depth-- }()

	switch val := v.(type) {
	case nil:
		c.buf.WriteByte('n')
		return nil
	case bool:
		if val {
			c.writeTagged('b', "true")
		} else {
			c.writeTagged('b', "false")
		}
		return nil
	case string:
		c.stringValue(val)
		return nil
	case time.Time:
		c.writeTagged('t', val.UTC().Format(time.RFC3339Nano))
		return nil
	case *time.Time:
		if val == nil {
			c.buf.WriteByte('n')
			return nil
		}
		c.writeTagged('t', val.UTC().Format(time.RFC3339Nano))
		return nil
	case json.Number:
		s, err := normalizeNumberString(string(val))
		if err != nil {
			return &fieldError{path: path, reason: err.Error()}
		}
		c.writeTagged('d', s)
		return nil
	case int:
		c.writeTagged('d', strconv.FormatInt(int64(val), 10))
		return nil
	case int8:
		c.writeTagged('d', strconv.FormatInt(int64(val), 10))
		return nil
	case int16:
		c.writeTagged('d', strconv.FormatInt(int64(val), 10))
		return nil
	case int32:
		c.writeTagged('d', strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		c.writeTagged('d', strconv.FormatInt(val, 10))
		return nil
	case uint:
		c.writeTagged('d', strconv.FormatUint(uint64(val), 10))
		return nil
	case uint8:
		c.writeTagged('d', strconv.FormatUint(uint64(val), 10))
		return nil
	case uint16:
		c.writeTagged('d', strconv.FormatUint(uint64(val), 10))
		return nil
	case uint32:
		c.writeTagged('d', strconv.FormatUint(uint64(val), 10))
		return nil
	case uint64:
		c.writeTagged('d', strconv.FormatUint(val, 10))
		return nil
	case float32:
		s, err := formatFloat(float64(val), 32)
		if err != nil {
			return &fieldError{path: path, reason: err.Error()}
		}
		c.writeTagged('d', s)
		return nil
	case float64:
		s, err := formatFloat(val, 64)
		if err != nil {
			return &fieldError{path: path, reason: err.Error()}
		}
		c.writeTagged('d', s)
		return nil
	case []byte:
		c.writeTagged('x', hex.EncodeToString(val))
		return nil
	case *Fields:
		if val == nil {
			c.buf.WriteByte('n')
			return nil
		}
		return c.orderedMap(path, val)
	case map[string]any:
		return c.plainMap(path, val)
	case []any:
		return c.list(path, len(val), func(i int) any { return val[i] })
	case []string:
		return c.list(path, len(val), func(i int) any { return val[i] })
	}

	return c.reflectValue(path, v)
}

// stringValue normalizes surrounding whitespace and timestamp spelling.
func (c *canonicalizer) stringValue(s string) {
	s = strings.TrimSpace(s)
	if ts, ok := parseTimestamp(s); ok {
		c.writeTagged('t', ts.UTC().Format(time.RFC3339Nano))
		return
	}
	c.writeTagged('s', s)
}

func (c *canonicalizer) orderedMap(path string, m *Fields) error {
	c.buf.WriteByte('m')
	c.writeLen(m.Len())
	c.buf.WriteByte('{')
	for _, k := range sortedKeys(m.Keys()) {
		v, _ := m.Get(k)
		c.writeKey(k)
		if err := c.value(path+"."+k, v); err != nil {
			return err
		}
	}
	c.buf.WriteByte('}')
	return nil
}

func (c *canonicalizer) plainMap(path string, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c.buf.WriteByte('m')
	c.writeLen(len(m))
	c.buf.WriteByte('{')
	for _, k := range keys {
		c.writeKey(k)
		if err := c.value(path+"."+k, m[k]); err != nil {
			return err
		}
	}
	c.buf.WriteByte('}')
	return nil
}

func (c *canonicalizer) list(path string, n int, at func(int) any) error {
	c.buf.WriteByte('a')
	c.writeLen(n)
	c.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if err := c.value(fmt.Sprintf("%s[%d]", path, i), at(i)); err != nil {
			return err
		}
	}
	c.buf.WriteByte(']')
	return nil
}

// reflectValue handles typed slices, string-keyed maps and pointers; anything
// else goes through a JSON round trip, which fails for channels, functions
// and complex numbers.
func (c *canonicalizer) reflectValue(path string, v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			c.buf.WriteByte('n')
			return nil
		}
		return c.value(path, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		return c.list(path, rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return c.plainMap(path, m)
		}
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return &fieldError{path: path, reason: fmt.Sprintf("unsupported value type %T", v)}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return &fieldError{path: path, reason: fmt.Sprintf("unsupported value type %T: %v", v, err)}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return &fieldError{path: path, reason: fmt.Sprintf("unsupported value type %T: %v", v, err)}
	}
	return c.value(path, generic)
}

func formatFloat(f float64, bitSize int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	if f == 0 {
		return "0", nil
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize), nil
}

// normalizeNumberString rewrites a JSON number so that 1, 1.0 and 1e0 share
// one spelling.
func normalizeNumberString(s string) (string, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	if bi, ok := new(big.Int).SetString(s, 10); ok {
		return bi.String(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q", s)
	}
	return formatFloat(f, 64)
}

func parseTimestamp(s string) (time.Time, bool) {
	// Cheap pre-check keeps ordinary strings off the parser.
	if len(s) < len("2006-01-02T15:04:05Z") || s[4] != '-' || s[7] != '-' || (s[10] != 'T' && s[10] != 't') {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func sortedKeys(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}
