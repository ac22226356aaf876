package record

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompute(t *testing.T, r *Record) Fingerprint {
	t.Helper()
	fp, err := Compute(r)
	require.NoError(t, err)
	return fp
}

func TestCompute_FieldOrderInsensitive(t *testing.T) {
	a := New("r1", "File").Set("filePath", "/a").Set("sizeInBytes", 10)
	b := New("r1", "File").Set("sizeInBytes", 10).Set("filePath", "/a")

	assert.Equal(t, mustCompute(t, a), mustCompute(t, b))
}

func TestCompute_KeyNotPartOfDigest(t *testing.T) {
	a := New("r1", "File").Set("filePath", "/a")
	b := New("other", "File").Set("filePath", "/a")

	assert.Equal(t, mustCompute(t, a), mustCompute(t, b))
}

func TestCompute_KindPartOfDigest(t *testing.T) {
	a := New("", "File").Set("name", "x")
	b := New("", "Directory").Set("name", "x")

	assert.NotEqual(t, mustCompute(t, a), mustCompute(t, b))
}

func TestCompute_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		left  any
		right any
		equal bool
	}{
		{"surrounding whitespace", "  /a\t", "/a", true},
		{"inner whitespace", "/a b", "/ab", false},
		{"int and integral float", 1, 1.0, true},
		{"json number exponent", json.Number("1e0"), 1, true},
		{"json number decimal", json.Number("1.50"), 1.5, true},
		{"int widths", int8(7), uint64(7), true},
		{"float32 shortest", float32(0.1), json.Number("0.1"), true},
		{"string vs number", "1", 1, false},
		{"bool vs string", true, "true", false},
		{"nil vs empty string", nil, "", false},
		{"timestamp offset", "2024-01-02T03:04:05+02:00", "2024-01-02T01:04:05Z", true},
		{"timestamp vs time.Time", "2024-01-02T01:04:05Z", time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC), true},
		{"different timestamps", "2024-01-02T01:04:05Z", "2024-01-02T01:04:06Z", false},
		{"big integer", json.Number("123456789012345678901234567890"), json.Number("123456789012345678901234567890"), true},
		{"negative zero", -0.0, 0, true},
		{"typed slice", []int{1, 2}, []any{1, 2}, true},
		{"slice order matters", []any{1, 2}, []any{2, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New("", "K").Set("v", tt.left)
			b := New("", "K").Set("v", tt.right)
			if tt.equal {
				assert.Equal(t, mustCompute(t, a), mustCompute(t, b))
			} else {
				assert.NotEqual(t, mustCompute(t, a), mustCompute(t, b))
			}
		})
	}
}

func TestCompute_NestedMapsSortedRecursively(t *testing.T) {
	inner := NewFields()
	inner.Set("b", 2)
	inner.Set("a", 1)

	a := New("", "K").Set("nested", inner)
	b := New("", "K").Set("nested", map[string]any{"a": 1, "b": 2})
	c := New("", "K").Set("nested", map[string]int{"b": 2, "a": 1})

	fa := mustCompute(t, a)
	assert.Equal(t, fa, mustCompute(t, b))
	assert.Equal(t, fa, mustCompute(t, c))
}

func TestCompute_StructValues(t *testing.T) {
	type owner struct {
		Name string `json:"name"`
		UID  int    `json:"uid"`
	}
	a := New("", "K").Set("owner", owner{Name: "root", UID: 0})
	b := New("", "K").Set("owner", map[string]any{"uid": 0, "name": "root"})

	assert.Equal(t, mustCompute(t, a), mustCompute(t, b))
}

func TestCompute_Unhashable(t *testing.T) {
	tests := []struct {
		name  string
		value any
		field string
	}{
		{"NaN", math.NaN(), "v"},
		{"Inf", math.Inf(1), "v"},
		{"channel", make(chan int), "v"},
		{"function", func() {}, "v"},
		{"complex", complex(1, 2), "v"},
		{"nested NaN", map[string]any{"x": math.NaN()}, "v.x"},
		{"NaN in list", []any{1, math.Inf(-1)}, "v[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(New("r1", "K").Set("v", tt.value))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnhashable))

			var ue *UnhashableRecordError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, "r1", ue.Key)
			assert.Equal(t, tt.field, ue.Field)
		})
	}
}

func TestCompute_CyclicValue(t *testing.T) {
	selfMap := map[string]any{"name": "loop"}
	selfMap["self"] = selfMap

	selfList := []any{"head", nil}
	selfList[1] = selfList

	selfFields := NewFields()
	selfFields.Set("inner", selfFields)

	tests := []struct {
		name   string
		value  any
		prefix string
	}{
		{"map", selfMap, "v.self.self"},
		{"list", selfList, "v[1][1]"},
		{"ordered fields", selfFields, "v.inner.inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(New("r1", "K").Set("v", tt.value))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnhashable)

			var ue *UnhashableRecordError
			require.True(t, errors.As(err, &ue))
			assert.True(t, strings.HasPrefix(ue.Field, tt.prefix), ue.Field)
			assert.Contains(t, ue.Reason, "nested deeper than")
		})
	}
}

func TestCompute_DeepButFiniteNesting(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < maxNesting-1; i++ {
		v = map[string]any{"n": v}
	}
	_, err := Compute(New("r1", "K").Set("v", v))
	assert.NoError(t, err)

	_, err = Compute(New("r1", "K").Set("v", map[string]any{"n": v}))
	assert.ErrorIs(t, err, ErrUnhashable)
}

func TestCompute_NilRecord(t *testing.T) {
	_, err := Compute(nil)
	assert.ErrorIs(t, err, ErrUnhashable)
}

func TestFingerprint_TextRoundTrip(t *testing.T) {
	fp := mustCompute(t, New("", "File").Set("filePath", "/a"))

	text, err := fp.MarshalText()
	require.NoError(t, err)
	assert.Len(t, text, 64)

	var parsed Fingerprint
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, fp, parsed)
	assert.False(t, parsed.IsZero())

	_, err = ParseFingerprint("abc")
	assert.Error(t, err)
	_, err = ParseFingerprint(string(make([]byte, 64)))
	assert.Error(t, err)
}

func TestLogicalKey(t *testing.T) {
	r := New("", "File").Set("filePath", "/a")
	fp := mustCompute(t, r)

	if got := LogicalKey(r, fp); got != "fp:"+fp.String() {
		t.Errorf("LogicalKey() = %q, want content key", got)
	}

	r.Key = "r1"
	if got := LogicalKey(r, fp); got != "r1" {
		t.Errorf("LogicalKey() = %q, want r1", got)
	}
}
