package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	passingScenario = `name: one_read
description: A bare table read is accepted
steps:
  - name: read
    sql: "SELECT * FROM t"
    expect:
      which: read
      valid: true
assertions:
  - type: submission_count
    count: 1
`
	failingScenario = `name: wrong_root
description: Expects the wrong root variant
steps:
  - name: only
    sql: "SELECT * FROM t"
    expect:
      which: filter
`
	oneReadGolden = `{"scenario_name":"one_read","trace":[{"codes":[],"document":{"read":{"table":"t"}},"operation_id":"op-1","seq":1,"status":"accepted","step":"read","which":"read"}]}`
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(NewTestCommand(jsonOpts()), t.TempDir())
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Scenarios)
}

func TestTestCommandPassAndFail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_pass.yaml", passingScenario)
	writeFile(t, dir, "b_fail.yaml", failingScenario)

	out, err := execute(NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ one_read")
	assert.Contains(t, out, "✗ wrong_root")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSONFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_pass.yaml", passingScenario)
	writeFile(t, dir, "b_fail.yaml", failingScenario)

	out, err := execute(NewTestCommand(jsonOpts()), dir)
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_pass.yaml", passingScenario)
	writeFile(t, dir, "b_fail.yaml", failingScenario)

	out, err := execute(NewTestCommand(textOpts()), dir, "--filter", "a_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nsteps: [\n")

	out, err := execute(NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one_read.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "one_read.golden")

	out, err := execute(NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ one_read (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, oneReadGolden, string(golden))

	_, err = execute(NewTestCommand(textOpts()), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"one_read","trace":[]}`), 0o644))
	out, err = execute(NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}
