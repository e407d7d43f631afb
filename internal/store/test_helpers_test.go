package store

import (
	"path/filepath"
	"testing"

	"github.com/ruanwenjun/spark/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSubmission encodes rel into a submission with minimal metadata.
func createTestSubmission(t *testing.T, opID, sessionID string, seq int64, rel *ir.Relation) Submission {
	t.Helper()
	data, err := ir.Marshal(rel)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	return Submission{
		OperationID:   opID,
		SessionID:     sessionID,
		Seq:           seq,
		PlanID:        ir.PlanIDFromBytes(data),
		Plan:          data,
		RootKind:      rel.WhichOneof(),
		SourceInfo:    rel.SourceInfo(),
		SchemaVersion: ir.SchemaVersion,
		ToolVersion:   ir.ToolVersion,
	}
}

func createTestOutcome(opID string, status Status, seq int64, codes ...string) Outcome {
	return Outcome{
		OperationID: opID,
		Status:      status,
		Codes:       codes,
		Seq:         seq,
	}
}
