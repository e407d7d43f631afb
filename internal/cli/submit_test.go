package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/analyzer"
	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/store"
)

func openStore(t *testing.T, dbPath string) *store.Store {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSubmitMissingFlags(t *testing.T) {
	planFile := writeFile(t, t.TempDir(), "plan.cue", filterPlanCUE)

	_, err := execute(NewSubmitCommand(textOpts()), planFile, "--session", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, err = execute(NewSubmitCommand(textOpts()), planFile, "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestSubmitAccepted(t *testing.T) {
	dir := t.TempDir()
	planFile := writeFile(t, dir, "plan.cue", filterPlanCUE)
	dbPath := filepath.Join(dir, "plans.db")

	out, err := execute(NewSubmitCommand(textOpts()), planFile, "--db", dbPath, "--session", "etl-1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ accepted filter plan as seq 1 in session etl-1")
	assert.Contains(t, out, "plan_id: "+ir.MustPlanID(filterPlan()))

	st := openStore(t, dbPath)
	subs, err := st.ListSessionSubmissions(context.Background(), "etl-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(1), subs[0].Seq)
	assert.Equal(t, "filter", subs[0].RootKind)

	outcome, err := st.ReadOutcome(context.Background(), subs[0].OperationID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusAccepted, outcome.Status)
}

func TestSubmitResumesSession(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "plans.db")
	first := writeFile(t, dir, "first.cue", filterPlanCUE)
	second := writeFile(t, dir, "second.sql", "SELECT * FROM t2")

	_, err := execute(NewSubmitCommand(jsonOpts()), first, "--db", dbPath, "--session", "etl-1")
	require.NoError(t, err)

	out, err := execute(NewSubmitCommand(jsonOpts()), second, "--db", dbPath, "--session", "etl-1")
	require.NoError(t, err)

	var result SubmitResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "etl-1", resp.TraceID)
	assert.Equal(t, int64(2), result.Seq)
	assert.Equal(t, "read", result.Which)
	assert.Equal(t, "accepted", result.Status)
	assert.NotEmpty(t, result.OperationID)
}

func TestSubmitRejected(t *testing.T) {
	dir := t.TempDir()
	planFile := writeFile(t, dir, "plan.cue", conflictPlanCUE)
	dbPath := filepath.Join(dir, "plans.db")

	out, err := execute(NewSubmitCommand(jsonOpts()), planFile, "--db", dbPath, "--session", "etl-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, analyzer.IsPlanningError(err))

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePlanning, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "planning failed")

	// rejected plans are still logged
	st := openStore(t, dbPath)
	subs, err := st.ListSubmissions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	outcome, err := st.ReadOutcome(context.Background(), subs[0].OperationID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, outcome.Status)
	assert.Equal(t, []string{analyzer.ErrJoinUsingAndCondition}, outcome.Codes)
}

func TestSubmitWarningsText(t *testing.T) {
	dir := t.TempDir()
	planFile := writeFile(t, dir, "plan.cue", warningPlanCUE)

	out, err := execute(NewSubmitCommand(textOpts()), planFile, "--db", filepath.Join(dir, "plans.db"), "--session", "s")
	require.NoError(t, err)
	assert.Contains(t, out, "! [E320]")
	assert.Contains(t, out, "! [E324]")
}

func TestSubmitInvalidPlanNotStored(t *testing.T) {
	dir := t.TempDir()
	planFile := writeFile(t, dir, "plan.cue", invalidPlanCUE)
	dbPath := filepath.Join(dir, "plans.db")

	_, err := execute(NewSubmitCommand(textOpts()), planFile, "--db", dbPath, "--session", "etl-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	st := openStore(t, dbPath)
	subs, err := st.ListSubmissions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubmitQuota(t *testing.T) {
	dir := t.TempDir()
	planFile := writeFile(t, dir, "plan.cue", filterPlanCUE)
	dbPath := filepath.Join(dir, "plans.db")
	args := []string{planFile, "--db", dbPath, "--session", "etl-1", "--max-submissions", "1"}

	_, err := execute(NewSubmitCommand(textOpts()), args...)
	require.NoError(t, err)

	out, err := execute(NewSubmitCommand(textOpts()), args...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]")
}
