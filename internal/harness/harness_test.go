package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func filterDocument() map[string]any {
	return map[string]any{
		"filter": map[string]any{
			"input":     map[string]any{"read": map[string]any{"table": "t1"}},
			"condition": map[string]any{"fn": ">", "args": []any{map[string]any{"col": "a"}, map[string]any{"lit": 5}}},
		},
	}
}

func TestRun_FilterOverTable(t *testing.T) {
	scenario := &Scenario{
		Name:        "filter_over_table",
		Description: "SQL and a plan document produce the same filter plan",
		Steps: []Step{
			{
				Name: "from_sql",
				SQL:  "SELECT * FROM t1 WHERE a > 5",
				Expect: &Expect{
					Which: "filter",
					Valid: boolPtr(true),
					SQL:   "SELECT * FROM t1 WHERE (a > 5)",
				},
			},
			{
				Name:     "from_document",
				Document: filterDocument(),
				Expect:   &Expect{Which: "filter", Warnings: []string{}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertSamePlan, Steps: []string{"from_sql", "from_document"}},
			{Type: AssertSubmissionCount, Count: 2},
			{Type: AssertReplay},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "op-1", result.Trace[0].OperationID)
	assert.Equal(t, result.Trace[0].PlanID, result.Trace[1].PlanID)
}

func TestRun_RejectedJoin(t *testing.T) {
	scenario := &Scenario{
		Name:        "rejected_join",
		Description: "Conflicts are logged as rejected, structural errors are never sent",
		Session:     "review",
		Steps: []Step{
			{
				Name: "conflicting",
				Document: map[string]any{
					"join": map[string]any{
						"left":      map[string]any{"read": map[string]any{"table": "a"}},
						"right":     map[string]any{"read": map[string]any{"table": "b"}},
						"type":      "inner",
						"using":     []any{"id"},
						"condition": map[string]any{"fn": "=", "args": []any{map[string]any{"col": "a.id"}, map[string]any{"col": "b.id"}}},
					},
				},
				Expect: &Expect{Valid: boolPtr(false), Conflicts: []string{"E301"}},
			},
			{
				Name: "missing_condition",
				Document: map[string]any{
					"filter": map[string]any{"input": map[string]any{"read": map[string]any{"table": "t"}}},
				},
				Expect: &Expect{Valid: boolPtr(false), Errors: []string{"E203"}},
			},
			{
				Name:   "cartesian",
				SQL:    "SELECT * FROM a, b",
				Expect: &Expect{Which: "join", Valid: boolPtr(true), Warnings: []string{"E324"}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertSubmissionCount, Count: 2},
			{Type: AssertDistinctPlans, Steps: []string{"conflicting", "cartesian"}},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, StatusRejected, result.Trace[0].Status)
	assert.Equal(t, StatusInvalid, result.Trace[1].Status)
	assert.Empty(t, result.Trace[1].PlanID)
	assert.Equal(t, StatusAccepted, result.Trace[2].Status)
}

func TestRun_FromFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/limit_from_file.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestRun_ExpectationFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectations",
		Description: "Every expectation is wrong",
		Steps: []Step{
			{
				Name: "only",
				SQL:  "SELECT * FROM t LIMIT 3",
				Expect: &Expect{
					Which:     "filter",
					Valid:     boolPtr(false),
					Errors:    []string{"E201"},
					Conflicts: []string{"E303"},
					Warnings:  []string{"E320"},
					SQL:       "SELECT 1",
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], `which = "limit", expected "filter"`)
	assert.Contains(t, result.Errors[1], "valid = true")
	assert.Contains(t, result.Errors[2], "errors = []")
	assert.Contains(t, result.Errors[3], "conflicts = []")
	assert.Contains(t, result.Errors[4], "warnings = []")
	assert.Contains(t, result.Errors[5], `sql = "SELECT * FROM t LIMIT 3"`)
}

func TestRun_BuildErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"sql syntax", Step{Name: "bad", SQL: "SELECT FROM WHERE"}},
		{"document shape", Step{Name: "bad", Document: map[string]any{"filter": "nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(&Scenario{Name: "x", Description: "x", Steps: []Step{tt.step}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "step 0 (bad)")
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "twice",
		Description: "Identical runs produce identical traces",
		Steps: []Step{
			{Name: "a", SQL: "SELECT a FROM t ORDER BY a"},
			{Name: "b", Document: filterDocument()},
		},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, "", first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, "", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Trace[0].PlanID, second.Trace[0].PlanID)
}
