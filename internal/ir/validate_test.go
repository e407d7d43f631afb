package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/expr"
)

func TestValidateValidPlans(t *testing.T) {
	plans := map[string]*Relation{
		"read":            ReadTable("t"),
		"left join using": NewJoin(ReadTable("r1"), ReadTable("r2")).As(JoinTypeLeftOuter).Using("id").Relation(),
		// Structurally valid; the conflict is reported by the analyzer.
		"join using and condition": NewJoin(ReadTable("r1"), ReadTable("r2")).As(JoinTypeLeftOuter).Using("id").On(expr.Bool(true)).Relation(),
		"range":   NewRange(0, 3).Relation(),
		"local":   NewLocalRelation(),
		"unknown": MustNew(&Unknown{}),
	}
	for name, plan := range plans {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, Validate(plan))
		})
	}
}

func TestValidateStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		plan  func() *Relation
		code  string
		field string
	}{
		{
			name:  "nil plan",
			plan:  func() *Relation { return nil },
			code:  ErrMissingVariant,
			field: "root",
		},
		{
			name:  "no variant",
			plan:  func() *Relation { return &Relation{} },
			code:  ErrMissingVariant,
			field: "root",
		},
		{
			name:  "filter without input",
			plan:  func() *Relation { return MustNew(&Filter{Condition: expr.Bool(true)}) },
			code:  ErrMissingInput,
			field: "root.filter.input",
		},
		{
			name:  "filter without condition",
			plan:  func() *Relation { return MustNew(&Filter{Input: ReadTable("t")}) },
			code:  ErrMissingField,
			field: "root.filter.condition",
		},
		{
			name:  "join without right",
			plan:  func() *Relation { return NewJoin(ReadTable("t"), nil).As(JoinTypeInner).Relation() },
			code:  ErrMissingInput,
			field: "root.join.right",
		},
		{
			name:  "read without source",
			plan:  func() *Relation { return MustNew(&Read{}) },
			code:  ErrMissingSource,
			field: "root.read",
		},
		{
			name:  "data source without format",
			plan:  func() *Relation { return ReadSourceFormat("", "", nil) },
			code:  ErrMissingField,
			field: "root.read.data_source.format",
		},
		{
			name:  "named table without identifier",
			plan:  func() *Relation { return ReadTable("") },
			code:  ErrMissingField,
			field: "root.read.named_table.unparsed_identifier",
		},
		{
			name:  "subquery alias without alias",
			plan:  func() *Relation { return NewSubqueryAlias(ReadTable("t"), "") },
			code:  ErrMissingField,
			field: "root.subquery_alias.alias",
		},
		{
			name:  "sort without fields",
			plan:  func() *Relation { return NewSort(ReadTable("t")) },
			code:  ErrMissingField,
			field: "root.sort.sort_fields",
		},
		{
			name:  "sort field without expression",
			plan:  func() *Relation { return NewSort(ReadTable("t"), SortField{Direction: SortDirectionAscending}) },
			code:  ErrMissingField,
			field: "root.sort.sort_fields[0].expression",
		},
		{
			name:  "nil projection",
			plan:  func() *Relation { return NewProject(ReadTable("t"), expr.Col("a"), nil) },
			code:  ErrNilExpression,
			field: "root.project.expressions[1]",
		},
		{
			name:  "nil function argument in filter condition",
			plan:  func() *Relation { return NewFilter(ReadTable("t"), expr.Fn(">", nil, expr.Long(5))) },
			code:  ErrNilExpression,
			field: "root.filter.condition.arguments[0]",
		},
		{
			name: "nil operand deep in join condition",
			plan: func() *Relation {
				cond := expr.Fn("and", expr.Bool(true), expr.Fn("=", expr.Col("a.id"), nil))
				return NewJoin(ReadTable("a"), ReadTable("b")).As(JoinTypeInner).On(cond).Relation()
			},
			code:  ErrNilExpression,
			field: "root.join.join_condition.arguments[1].arguments[1]",
		},
		{
			name:  "alias of nil in projection",
			plan:  func() *Relation { return NewProject(ReadTable("t"), expr.As(nil, "x")) },
			code:  ErrNilExpression,
			field: "root.project.expressions[0].expr",
		},
		{
			name: "nil argument in sort key",
			plan: func() *Relation {
				return NewSort(ReadTable("t"), SortField{Expression: expr.Fn("abs", nil)})
			},
			code:  ErrNilExpression,
			field: "root.sort.sort_fields[0].expression.arguments[0]",
		},
		{
			name:  "aggregate without function name",
			plan:  func() *Relation { return NewAggregate(ReadTable("t"), nil, Agg("", expr.Col("a"))) },
			code:  ErrMissingField,
			field: "root.aggregate.result_expressions[0].name",
		},
		{
			name:  "empty sql",
			plan:  func() *Relation { return NewSQL("  ") },
			code:  ErrMissingField,
			field: "root.sql.query",
		},
		{
			name: "shared node",
			plan: func() *Relation {
				shared := ReadTable("t")
				return NewJoin(shared, shared).As(JoinTypeInner).Relation()
			},
			code:  ErrSharedNode,
			field: "root.join.right",
		},
		{
			name: "cycle",
			plan: func() *Relation {
				f := &Filter{Condition: expr.Bool(true)}
				r := MustNew(f)
				f.Input = r
				return r
			},
			code:  ErrSharedNode,
			field: "root.filter.input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.plan())
			require.Len(t, errs, 1, "%v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	plan := NewProject(
		NewJoin(nil, MustNew(&Read{})).Relation(),
		nil,
	)

	errs := Validate(plan)
	require.Len(t, errs, 3)
	assert.Equal(t, ErrMissingInput, errs[0].Code)
	assert.Equal(t, ErrMissingSource, errs[1].Code)
	assert.Equal(t, ErrNilExpression, errs[2].Code)
}

func TestMarshalRejectsNestedNilExpression(t *testing.T) {
	plan := NewFilter(ReadTable("t"), expr.Fn(">", nil, expr.Long(5)))

	_, err := Marshal(plan)
	require.Error(t, err)
	var ipe *InvalidPlanError
	require.True(t, errors.As(err, &ipe))
	require.Len(t, ipe.Errors, 1)
	assert.Equal(t, ErrNilExpression, ipe.Errors[0].Code)
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "root.join.left", Message: "left is required", Code: ErrMissingInput}
	assert.Equal(t, "[E202] root.join.left: left is required", err.Error())
}
