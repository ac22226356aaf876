package sqlutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		base   string
		want   string
	}{
		{"no prefix meta", "", "plan_meta", "`plan_meta`"},
		{"no prefix records", "", "plan_record", "`plan_record`"},
		{"project prefix", "entityplan_", "plan_slot", "`entityplan_plan_slot`"},
		{"short prefix", "kb_", "plan_record", "`kb_plan_record`"},
		{"mixed case prefix", "Tenant42_", "plan_meta", "`Tenant42_plan_meta`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TableName(tt.prefix, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableName_RejectsPrefix(t *testing.T) {
	prefixes := []string{
		"kb-",
		"kb.",
		"kb ",
		"kb`",
		"kb$",
		"plan'; DROP TABLE plan_slot; --",
		"ünïcode_",
	}

	for _, prefix := range prefixes {
		t.Run(prefix, func(t *testing.T) {
			got, err := TableName(prefix, "plan_slot")
			require.Error(t, err)
			assert.Empty(t, got)

			var ie *InvalidIdentifierError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, prefix+"plan_slot", ie.Name)
			assert.Contains(t, err.Error(), "invalid identifier: "+prefix)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := map[string]string{
		"plan_slot":    "`plan_slot`",
		"":             "``",
		"plan`slot":    "`plan``slot`",
		"`plan_meta`":  "```plan_meta```",
		"a``b":         "`a````b`",
		"entityplan_1": "`entityplan_1`",
	}

	for in, want := range tests {
		assert.Equal(t, want, QuoteIdentifier(in), "input %q", in)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"plan_record", true},
		{"KB_", true},
		{"_", true},
		{"0001", true},
		{"", false},
		{"plan record", false},
		{"plan-record", false},
		{"db.plan_record", false},
		{"plan_record;", false},
		{"plan_record\n", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidIdentifier(tt.input), "input %q", tt.input)
	}
}

func TestQuoteIdentifierSafe(t *testing.T) {
	got, err := QuoteIdentifierSafe("plan_meta")
	require.NoError(t, err)
	assert.Equal(t, "`plan_meta`", got)

	_, err = QuoteIdentifierSafe("plan`meta")
	assert.IsType(t, &InvalidIdentifierError{}, err)
	assert.EqualError(t, err,
		"invalid identifier: plan`meta (must contain only alphanumeric characters and underscores)")
}
