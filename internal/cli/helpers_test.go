package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/ir"
)

const (
	filterPlanCUE = `filter: {
	input: read: table: "t1"
	condition: {fn: ">", args: [{col: "a"}, {lit: 5}]}
}
`
	limitPlanCUE = `limit: {
	input: filter: {
		input: read: table: "t1"
		condition: {fn: ">", args: [{col: "a"}, {lit: 5}]}
	}
	limit: 10
}
`
	// filter without its condition
	invalidPlanCUE = `filter: input: read: table: "t"
`
	conflictPlanCUE = `join: {
	left: read: table: "a"
	right: read: table: "b"
	type: "inner"
	using: ["id"]
	condition: {fn: "=", args: [{col: "a.id"}, {col: "b.id"}]}
}
`
	warningPlanCUE = `join: {
	left: read: table: "a"
	right: read: table: "b"
}
`
)

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeWirePlan encodes rel into dir/name and returns the path.
func writeWirePlan(t *testing.T, dir, name string, rel *ir.Relation) string {
	t.Helper()
	data, err := ir.Marshal(rel)
	require.NoError(t, err)
	return writeFile(t, dir, name, string(data))
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse decodes a JSON CLIResponse whose data is unmarshaled
// into data when non-nil.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}

func textOpts() *RootOptions { return &RootOptions{Format: "text"} }
func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }
