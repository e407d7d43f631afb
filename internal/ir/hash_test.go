package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/expr"
)

func TestPlanIDDeterminism(t *testing.T) {
	build := func() *Relation {
		return NewFilter(ReadTable("t1"), expr.Fn(">", expr.Col("a"), expr.Long(5)))
	}

	id1, err := PlanID(build())
	require.NoError(t, err)
	id2, err := PlanID(build())
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "PlanID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestPlanIDChangesWithContent(t *testing.T) {
	base := MustPlanID(NewLimit(ReadTable("t"), 10))

	assert.NotEqual(t, base, MustPlanID(NewLimit(ReadTable("t"), 11)))
	assert.NotEqual(t, base, MustPlanID(NewLimit(ReadTable("u"), 10)))
	assert.NotEqual(t, base, MustPlanID(NewOffset(ReadTable("t"), 10)))
	assert.NotEqual(t, base, MustPlanID(NewLimit(ReadTable("t", WithSourceInfo("x.go:1")), 10)))
}

func TestPlanIDPresenceMatters(t *testing.T) {
	assert.NotEqual(t,
		MustPlanID(NewRange(0, 10).Relation()),
		MustPlanID(NewRange(0, 10).WithStep(1).Relation()),
	)
}

func TestPlanIDMatchesBytes(t *testing.T) {
	plan := NewSQL("SELECT 1")
	data, err := Marshal(plan)
	require.NoError(t, err)
	assert.Equal(t, MustPlanID(plan), PlanIDFromBytes(data))
}

func TestPlanIDInvalidPlan(t *testing.T) {
	_, err := PlanID(&Relation{})
	assert.Error(t, err)
	assert.Panics(t, func() { MustPlanID(&Relation{}) })
}
