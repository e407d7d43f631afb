package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/wire"
)

func TestExpressionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		expr Expression
	}{
		{"null", Null()},
		{"bool false", Bool(false)},
		{"bool true", Bool(true)},
		{"long zero", Long(0)},
		{"long negative", Long(-9)},
		{"double", Double(2.5)},
		{"empty string", Str("")},
		{"string", Str("it's")},
		{"column", Col("t.a")},
		{"function", Fn(">", Col("a"), Long(5))},
		{"distinct function", DistinctFn("count", Col("id"))},
		{"nested function", Fn("and", Fn("=", Col("a"), Long(1)), Fn("<", Col("b"), Double(0.5)))},
		{"expression string", SQL("a + 1")},
		{"star", Star("")},
		{"qualified star", Star("t")},
		{"alias", As(Col("a"), "x")},
		{"multi alias", As(Fn("explode", Col("m")), "k", "v")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.expr)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, got)

			again, err := Marshal(got)
			require.NoError(t, err)
			assert.Equal(t, data, again, "re-encoding must be byte identical")
		})
	}
}

func TestExpressionStrings(t *testing.T) {
	tests := []struct {
		expr Expression
		want string
	}{
		{Null(), "NULL"},
		{Bool(true), "TRUE"},
		{Long(42), "42"},
		{Double(1.5), "1.5"},
		{Str("o'clock"), "'o''clock'"},
		{Col("a"), "a"},
		{Fn(">", Col("a"), Long(5)), "(a > 5)"},
		{Fn("and", Col("x"), Col("y")), "(x AND y)"},
		{Fn("not", Col("x")), "(NOT x)"},
		{Fn("upper", Col("name")), "upper(name)"},
		{Fn("in", Col("c"), Long(1), Long(2)), "(c IN (1, 2))"},
		{Fn("not in", Col("c"), Str("x")), "(c NOT IN ('x'))"},
		{DistinctFn("count", Col("id")), "count(DISTINCT id)"},
		{Star(""), "*"},
		{Star("t"), "t.*"},
		{As(Fn("sum", Col("v")), "total"), "sum(v) AS total"},
		{As(Col("m"), "k", "v"), "m AS (k, v)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestStringWithMissingOperands(t *testing.T) {
	assert.Equal(t, "(<nil> > 5)", Fn(">", nil, Long(5)).String())
	assert.Equal(t, "(NOT <nil>)", Fn("not", nil).String())
	assert.Equal(t, "(a IN (<nil>, 1))", Fn("in", Col("a"), nil, Long(1)).String())
	assert.Equal(t, "abs(<nil>)", Fn("abs", nil).String())
	assert.Equal(t, "<nil> AS x", As(nil, "x").String())
}

func TestMarshalNilExpression(t *testing.T) {
	_, err := Marshal(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNilExpression))

	_, err = Marshal(Fn("f", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNilExpression))
}

func TestUnrecognizedVariantIsPreserved(t *testing.T) {
	// A newer schema adds expression variant 42.
	var enc wire.Encoder
	enc.String(42, "lambda x: x")
	data := enc.Bytes()

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.IsType(t, &Opaque{}, got)

	again, err := Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestUnknownFieldInsideKnownVariant(t *testing.T) {
	var enc wire.Encoder
	require.NoError(t, enc.Message(fieldUnresolvedAttribute, func(sub *wire.Encoder) error {
		sub.String(1, "a")
		sub.Int64(9, 3) // plan_id in a newer schema
		return nil
	}))
	data := enc.Bytes()

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "a", got.String())

	again, err := Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEmptyExpressionIsMalformed(t *testing.T) {
	_, err := Unmarshal(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wire.ErrMalformed))
}

func nestedFunctions(n int) Expression {
	var e Expression = Col("a")
	for i := 0; i < n; i++ {
		e = Fn("abs", e)
	}
	return e
}

func TestUnmarshalDepthLimit(t *testing.T) {
	data, err := Marshal(nestedFunctions(MaxDepth + 10))
	require.NoError(t, err)

	_, err = Unmarshal(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wire.ErrMalformed))

	aliased, err := Marshal(As(nestedFunctions(MaxDepth+10), "x"))
	require.NoError(t, err)
	_, err = Unmarshal(aliased)
	assert.True(t, errors.Is(err, wire.ErrMalformed))
}

func TestUnmarshalWithinDepthLimit(t *testing.T) {
	e := nestedFunctions(100)
	data, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, e.String(), got.String())
}

func TestQualifiedAttributeRoundTrip(t *testing.T) {
	attr := Attr("id", "bigint")

	var enc wire.Encoder
	EncodeAttribute(&enc, attr)

	got, err := UnmarshalAttribute(enc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, attr, got)
}
