package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

const limitPlanTree = "Limit 10\n  Filter (a > 5)\n    Read table=t1\n"

func TestExplainTree(t *testing.T) {
	planFile := writeFile(t, t.TempDir(), "plan.cue", limitPlanCUE)

	out, err := execute(NewExplainCommand(textOpts()), planFile)
	require.NoError(t, err)
	assert.Equal(t, limitPlanTree, out)
}

func TestExplainDocument(t *testing.T) {
	planFile := writeFile(t, t.TempDir(), "plan.cue", limitPlanCUE)

	out, err := execute(NewExplainCommand(textOpts()), planFile, "--document")
	require.NoError(t, err)
	assert.Equal(t,
		`{"limit":{"input":{"filter":{"condition":{"args":[{"col":"a"},{"lit":5}],"fn":">"},"input":{"read":{"table":"t1"}}}},"limit":10}}`+"\n",
		out)
}

func TestExplainJSON(t *testing.T) {
	planFile := writeFile(t, t.TempDir(), "plan.cue", limitPlanCUE)

	out, err := execute(NewExplainCommand(jsonOpts()), planFile)
	require.NoError(t, err)

	var result ExplainResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "limit", result.Which)
	assert.Equal(t, 3, result.Nodes)
	assert.Equal(t, limitPlanTree, result.Tree)
	assert.JSONEq(t,
		`{"limit":{"input":{"filter":{"condition":{"args":[{"col":"a"},{"lit":5}],"fn":">"},"input":{"read":{"table":"t1"}}}},"limit":10}}`,
		string(result.Document))
}

func TestExplainWirePlan(t *testing.T) {
	rel := ir.NewLimit(filterPlan(), 10)
	planFile := writeWirePlan(t, t.TempDir(), "plan.bin", rel)

	out, err := execute(NewExplainCommand(textOpts()), planFile)
	require.NoError(t, err)
	assert.Equal(t, limitPlanTree, out)
}

func TestWriteTree(t *testing.T) {
	tests := []struct {
		name string
		rel  *ir.Relation
		want string
	}{
		{
			"join",
			ir.NewJoin(ir.ReadTable("a"), ir.ReadTable("b")).As(ir.JoinTypeLeftOuter).Using("id").Relation(),
			"Join left_outer using [id]\n  Read table=a\n  Read table=b\n",
		},
		{
			"join on condition",
			ir.NewJoin(ir.ReadTable("a"), ir.ReadTable("b")).On(expr.Fn("=", expr.Col("a.id"), expr.Col("b.id"))).Relation(),
			"Join on (a.id = b.id)\n  Read table=a\n  Read table=b\n",
		},
		{
			"sort",
			ir.NewSort(ir.ReadTable("t"), ir.Desc(expr.Col("a")), ir.SortField{Expression: expr.Col("b")}),
			"Sort [a descending nulls last, b]\n  Read table=t\n",
		},
		{
			"range",
			ir.NewRange(0, 10).WithStep(2).WithNumPartitions(4).Relation(),
			"Range [0, 10) step=2 partitions=4\n",
		},
		{
			"data source",
			ir.ReadSourceFormat("csv", "a INT", ir.NewOptions("sep", ";")),
			`Read format=csv schema="a INT" sep=";"` + "\n",
		},
		{
			"aggregate",
			ir.NewAggregate(ir.ReadTable("emp"), []expr.Expression{expr.Col("dept")}, ir.Agg("count", expr.Star(""))),
			"Aggregate group=[dept] results=[count(*)]\n  Read table=emp\n",
		},
		{
			"subquery alias",
			ir.NewSubqueryAlias(ir.ReadTable("t"), "x", "spark_catalog", "db"),
			"SubqueryAlias x qualifier=spark_catalog.db\n  Read table=t\n",
		},
		{
			"sample",
			ir.NewSample(ir.ReadTable("t"), 0, 0.25).WithSeed(42).Relation(),
			"Sample [0, 0.25] seed=42\n  Read table=t\n",
		},
		{
			"deduplicate",
			ir.NewDeduplicate(ir.ReadTable("t"), "id", "ts"),
			"Deduplicate [id, ts]\n  Read table=t\n",
		},
		{
			"sql with source info",
			ir.NewSQL("SELECT 1", ir.WithSourceInfo("job.py:3")),
			`SQL "SELECT 1" @job.py:3` + "\n",
		},
		{
			"set operation",
			ir.NewSetOperation(ir.ReadTable("a"), ir.ReadTable("b"), ir.SetOpTypeUnion, true),
			"SetOperation union all\n  Read table=a\n  Read table=b\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			n := WriteTree(&sb, tt.rel)
			assert.Equal(t, tt.want, sb.String())
			assert.Equal(t, strings.Count(tt.want, "\n"), n)
		})
	}
}
