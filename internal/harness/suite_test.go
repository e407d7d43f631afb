package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/suite")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "suite", "fail.yaml"),
		filepath.Join("testdata", "suite", "pass.yaml"),
	}, paths)
}

func TestRunSuite(t *testing.T) {
	paths, err := FindScenarios("testdata/suite")
	require.NoError(t, err)
	paths = append(paths, "testdata/suite/missing.yaml")

	result := RunSuite(context.Background(), paths)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, "suite_fail", result.Failures[0].Name)
	assert.Contains(t, result.Failures[0].Error, "scenario assertions failed")
	assert.Contains(t, result.Failures[1].Error, "failed to load scenario")
}
