package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/session"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewReplayCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	openStore(t, dbPath)

	out, err := execute(NewReplayCommand(textOpts()), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestReplayEmptyDatabaseJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	openStore(t, dbPath)

	out, err := execute(NewReplayCommand(jsonOpts()), "--db", dbPath)
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 0, result.TotalSessions)
	assert.True(t, result.Reproducible)
	assert.Empty(t, result.Sessions)
}

// seedSessions submits plans to two sessions and returns the db path.
func seedSessions(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st := openStore(t, dbPath)
	ctx := context.Background()

	plans := map[string][]*ir.Relation{
		"alpha": {ir.ReadTable("a"), filterPlan()},
		"beta":  {ir.NewLimit(ir.ReadTable("b"), 3)},
	}
	for id, rels := range plans {
		sess, err := session.New(ctx, st, id, session.UUIDv7Generator{})
		require.NoError(t, err)
		for _, rel := range rels {
			_, err := sess.Submit(ctx, rel)
			require.NoError(t, err)
		}
	}
	return dbPath
}

func TestReplayAllSessions(t *testing.T) {
	dbPath := seedSessions(t)

	out, err := execute(NewReplayCommand(textOpts()), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 2 session(s)")
	assert.Contains(t, out, "✓ alpha: 2 plan(s), last seq 2")
	assert.Contains(t, out, "✓ beta: 1 plan(s), last seq 1")
	assert.Contains(t, out, "All plans reproduce byte-identically.")
}

func TestReplaySingleSessionJSON(t *testing.T) {
	dbPath := seedSessions(t)

	out, err := execute(NewReplayCommand(jsonOpts()), "--db", dbPath, "--session", "beta")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, "beta", result.Sessions[0].SessionID)
	assert.Equal(t, 1, result.Sessions[0].Checked)
	assert.Empty(t, result.Sessions[0].Mismatches)
}

func TestReplayDetectsMismatch(t *testing.T) {
	dbPath := seedSessions(t)

	st := openStore(t, dbPath)
	other, err := ir.Marshal(ir.ReadTable("z"))
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE submissions SET plan = ? WHERE session_id = 'beta'`, other)
	require.NoError(t, err)

	out, err := execute(NewReplayCommand(textOpts()), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ alpha")
	assert.Contains(t, out, "✗ beta")
	assert.Contains(t, out, "does not match")
	assert.Contains(t, out, "Replay found plans that do not reproduce.")
}
