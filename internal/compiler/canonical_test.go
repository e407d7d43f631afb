package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int64", int64(42), "42"},
		{"negative", int64(-100), "-100"},
		{"int", 7, "7"},
		{"min int64", int64(math.MinInt64), "-9223372036854775808"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"float", 2.5, "2.5"},
		{"integral float", 2.0, "2.0"},
		{"zero float", 0.0, "0.0"},
		{"large float", 1e300, "1e+300"},
		{"small float", 1e-9, "1e-09"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"a": []any{int64(1), "x", nil}}, `{"a":[1,"x",null]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"beta":  map[string]any{"y": true, "x": false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":false,"y":true},"zebra":1}`, string(got))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, below 0xE000.
	got, err := MarshalCanonical(map[string]any{
		"\uE000":     int64(1),
		"\U00010000": int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(got))
}

func TestMarshalCanonicalStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"quote and backslash", `say "hi" \ bye`, `"say \"hi\" \\ bye"`},
		{"short escapes", "a\nb\tc\rd\be\ff", `"a\nb\tc\rd\be\ff"`},
		{"other control", "\x00\x1f", `"\u0000\u001f"`},
		{"line separators stay literal", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"nfc normalized", "e\u0301", "\"\u00e9\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalErrors(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": []any{math.Inf(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}
