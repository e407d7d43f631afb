package querysql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

func TestRender(t *testing.T) {
	gt5 := expr.Fn(">", expr.Col("a"), expr.Long(5))

	tests := []struct {
		name string
		plan *ir.Relation
		want string
	}{
		{
			name: "table",
			plan: ir.ReadTable("t1"),
			want: "SELECT * FROM t1",
		},
		{
			name: "filter",
			plan: ir.NewFilter(ir.ReadTable("t1"), gt5),
			want: "SELECT * FROM t1 WHERE (a > 5)",
		},
		{
			name: "stacked filters fold",
			plan: ir.NewFilter(ir.NewFilter(ir.ReadTable("t1"), gt5), expr.Fn("isnotnull", expr.Col("b"))),
			want: "SELECT * FROM t1 WHERE (a > 5) AND isnotnull(b)",
		},
		{
			name: "filter over limit nests",
			plan: ir.NewFilter(ir.NewLimit(ir.ReadTable("t"), 5), gt5),
			want: "SELECT * FROM (SELECT * FROM t LIMIT 5) AS _1 WHERE (a > 5)",
		},
		{
			name: "project over filter",
			plan: ir.NewProject(ir.NewFilter(ir.ReadTable("t1"), gt5), expr.Col("a"), expr.As(expr.Col("b"), "c")),
			want: "SELECT a, b AS c FROM t1 WHERE (a > 5)",
		},
		{
			name: "filter over project nests",
			plan: ir.NewFilter(ir.NewProject(ir.ReadTable("t"), expr.As(expr.Col("b"), "c")), expr.Fn("=", expr.Col("c"), expr.Long(1))),
			want: "SELECT * FROM (SELECT b AS c FROM t) AS _1 WHERE (c = 1)",
		},
		{
			name: "sort and limit",
			plan: ir.NewLimit(ir.NewSort(ir.NewProject(ir.ReadTable("t"), expr.Col("a")), ir.Desc(expr.Col("a"))), 10),
			want: "SELECT a FROM t ORDER BY a DESC NULLS LAST LIMIT 10",
		},
		{
			name: "limit over offset folds",
			plan: ir.NewLimit(ir.NewOffset(ir.ReadTable("t"), 5), 10),
			want: "SELECT * FROM t LIMIT 10 OFFSET 5",
		},
		{
			name: "offset over limit nests",
			plan: ir.NewOffset(ir.NewLimit(ir.ReadTable("t"), 10), 5),
			want: "SELECT * FROM (SELECT * FROM t LIMIT 10) AS _1 OFFSET 5",
		},
		{
			name: "derived tables are numbered in order",
			plan: ir.NewLimit(ir.NewLimit(ir.NewLimit(ir.ReadTable("t"), 3), 2), 1),
			want: "SELECT * FROM (SELECT * FROM (SELECT * FROM t LIMIT 3) AS _1 LIMIT 2) AS _2 LIMIT 1",
		},
		{
			name: "join using",
			plan: ir.NewJoin(ir.ReadTable("r1"), ir.ReadTable("r2")).As(ir.JoinTypeLeftOuter).Using("id").Relation(),
			want: "SELECT * FROM r1 LEFT OUTER JOIN r2 USING (id)",
		},
		{
			name: "join on aliased inputs",
			plan: ir.NewJoin(
				ir.NewSubqueryAlias(ir.ReadTable("orders"), "o"),
				ir.NewSubqueryAlias(ir.ReadTable("users"), "u"),
			).As(ir.JoinTypeInner).On(expr.Fn("=", expr.Col("o.uid"), expr.Col("u.id"))).Relation(),
			want: "SELECT * FROM orders AS o INNER JOIN users AS u ON (o.uid = u.id)",
		},
		{
			name: "unspecified join type",
			plan: ir.NewJoin(ir.ReadTable("a"), ir.ReadTable("b")).Relation(),
			want: "SELECT * FROM a JOIN b",
		},
		{
			name: "join with filtered side",
			plan: ir.NewJoin(ir.NewFilter(ir.ReadTable("a"), gt5), ir.ReadTable("b")).As(ir.JoinTypeLeftSemi).Using("k").Relation(),
			want: "SELECT * FROM (SELECT * FROM a WHERE (a > 5)) AS _1 LEFT SEMI JOIN b USING (k)",
		},
		{
			name: "aggregate",
			plan: ir.NewAggregate(ir.ReadTable("emp"), []expr.Expression{expr.Col("dept")}, ir.Agg("count", expr.Star(""))),
			want: "SELECT dept, count(*) FROM emp GROUP BY dept",
		},
		{
			name: "union all",
			plan: ir.NewSetOperation(
				ir.NewProject(ir.ReadTable("t1"), expr.Col("a")),
				ir.NewProject(ir.ReadTable("t2"), expr.Col("a")),
				ir.SetOpTypeUnion, true,
			),
			want: "SELECT a FROM t1 UNION ALL SELECT a FROM t2",
		},
		{
			name: "limit over except",
			plan: ir.NewLimit(ir.NewSetOperation(ir.ReadTable("a"), ir.ReadTable("b"), ir.SetOpTypeExcept, false), 3),
			want: "SELECT * FROM (SELECT * FROM a EXCEPT SELECT * FROM b) AS _1 LIMIT 3",
		},
		{
			name: "intersect of limited inputs",
			plan: ir.NewSetOperation(ir.NewLimit(ir.ReadTable("a"), 1), ir.ReadTable("b"), ir.SetOpTypeIntersect, false),
			want: "(SELECT * FROM a LIMIT 1) INTERSECT SELECT * FROM b",
		},
		{
			name: "distinct",
			plan: ir.NewDeduplicate(ir.NewProject(ir.ReadTable("t"), expr.Col("a"))),
			want: "SELECT DISTINCT a FROM t",
		},
		{
			name: "range",
			plan: ir.NewRange(0, 10).Relation(),
			want: "SELECT * FROM range(0, 10)",
		},
		{
			name: "range with step",
			plan: ir.NewRange(0, 10).WithStep(2).Relation(),
			want: "SELECT * FROM range(0, 10, 2)",
		},
		{
			name: "range with partitions only",
			plan: ir.NewRange(0, 10).WithNumPartitions(4).Relation(),
			want: "SELECT * FROM range(0, 10, 1, 4)",
		},
		{
			name: "sql leaf",
			plan: ir.NewSQL("SELECT 1"),
			want: "SELECT 1",
		},
		{
			name: "filter over sql leaf",
			plan: ir.NewFilter(ir.NewSQL("SELECT * FROM t"), gt5),
			want: "SELECT * FROM (SELECT * FROM t) AS _1 WHERE (a > 5)",
		},
		{
			name: "alias over filter",
			plan: ir.NewSubqueryAlias(ir.NewFilter(ir.ReadTable("t"), gt5), "s"),
			want: "SELECT * FROM (SELECT * FROM t WHERE (a > 5)) AS s",
		},
		{
			name: "data source with path",
			plan: ir.ReadSourceFormat("parquet", "", ir.NewOptions("PATH", "/data/events")),
			want: "SELECT * FROM parquet.`/data/events`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_NotRenderable(t *testing.T) {
	tests := []struct {
		name string
		plan *ir.Relation
	}{
		{"local relation", ir.NewLocalRelation(expr.Attr("id", "bigint"))},
		{"sample", ir.NewSample(ir.ReadTable("t"), 0, 0.5).Relation()},
		{"deduplicate subset", ir.NewDeduplicate(ir.ReadTable("t"), "a")},
		{"placeholder", ir.MustNew(&ir.Unknown{})},
		{"data source without path", ir.ReadSourceFormat("jdbc", "", nil)},
		{"set operation by name", ir.MustNew(&ir.SetOperation{
			LeftInput:  ir.ReadTable("a"),
			RightInput: ir.ReadTable("b"),
			SetOpType:  ir.SetOpTypeUnion,
			ByName:     true,
		})},
		{"unspecified set operation", ir.NewSetOperation(ir.ReadTable("a"), ir.ReadTable("b"), ir.SetOpTypeUnspecified, false)},
		{"nested", ir.NewLimit(ir.NewLocalRelation(), 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.plan)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotRenderable), "%v", err)
		})
	}
}

func TestRender_InvalidPlan(t *testing.T) {
	_, err := Render(ir.NewFilter(nil, expr.Col("a")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrInvalidPlan))
}

func TestRender_NestedNilOperand(t *testing.T) {
	_, err := Render(ir.NewFilter(ir.ReadTable("t"), expr.Fn(">", nil, expr.Long(5))))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrInvalidPlan))
}

func TestRender_Deterministic(t *testing.T) {
	plan := ir.NewFilter(ir.NewLimit(ir.NewSQL("SELECT 1 AS a"), 5), expr.Fn(">", expr.Col("a"), expr.Long(0)))
	first, err := Render(plan)
	require.NoError(t, err)
	for range 5 {
		again, err := Render(plan)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
