package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"

	"github.com/ruanwenjun/spark/internal/ir"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		location string
		want     PlanFormat
		ok       bool
	}{
		{"plan.cue", FormatCUE, true},
		{"/tmp/Plan.JSON", FormatJSON, true},
		{"query.sql", FormatSQL, true},
		{"file:///data/plan.bin", FormatWire, true},
		{"plan.pb", FormatWire, true},
		{"plan.yaml", "", false},
		{"plan", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, ok := DetectFormat(tt.location)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPlanFormats(t *testing.T) {
	want := filterPlan()
	wire, err := ir.Marshal(want)
	require.NoError(t, err)

	tests := []struct {
		name   string
		format PlanFormat
		data   string
	}{
		{"cue", FormatCUE, filterPlanCUE},
		{"json", FormatJSON, `{"plan": {"filter": {"input": {"read": {"table": "t1"}}, "condition": {"fn": ">", "args": [{"col": "a"}, {"lit": 5}]}}}}`},
		{"sql", FormatSQL, "SELECT * FROM t1 WHERE a > 5"},
		{"wire", FormatWire, string(wire)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := BuildPlan(tt.format, "plan."+tt.name, []byte(tt.data))
			require.NoError(t, err)
			assert.True(t, ir.Equal(want, rel))
		})
	}
}

func TestBuildPlanInvalid(t *testing.T) {
	_, err := BuildPlan(FormatCUE, "plan.cue", []byte(invalidPlanCUE))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeInvalidPlan, le.Code)
	require.Len(t, le.Errors, 1)
	assert.Equal(t, ir.ErrMissingField, le.Errors[0].Code)
}

func TestBuildPlanUnknownFormat(t *testing.T) {
	_, err := BuildPlan(PlanFormat("xml"), "plan.xml", nil)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeUnknownFormat, le.Code)
}

func TestPlanLoaderSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	loader := NewPlanLoader(afs.New())
	location := filepath.Join(t.TempDir(), "nested", "plan.bin")

	data, err := ir.Marshal(filterPlan())
	require.NoError(t, err)
	require.NoError(t, loader.Save(ctx, location, data))

	rel, err := loader.Load(ctx, location)
	require.NoError(t, err)
	assert.True(t, ir.Equal(filterPlan(), rel))
}

// unreachableFS fails every existence check, as a storage backend does
// when permissions or the transport fail.
type unreachableFS struct {
	afs.Service
}

func (unreachableFS) Exists(context.Context, string, ...storage.Option) (bool, error) {
	return false, errors.New("permission denied")
}

func TestPlanLoaderExistsFailure(t *testing.T) {
	_, err := NewPlanLoader(unreachableFS{Service: afs.New()}).Load(context.Background(), "s3://bucket/plan.cue")
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeReadFailed, le.Code)
	assert.Contains(t, le.Message, "permission denied")
}

func TestPlanLoaderMissingFile(t *testing.T) {
	_, err := NewPlanLoader(afs.New()).Load(context.Background(), filepath.Join(t.TempDir(), "absent.cue"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{Code: ErrCodeNotFound, Message: "plan file not found: x.cue"}
	assert.Equal(t, "E005: plan file not found: x.cue", err.Error())

	noPos := &LoadError{Code: ErrCodeCompileFailed, Message: "bad", Pos: token.NoPos}
	assert.Equal(t, "E006: bad", noPos.Error())
}
