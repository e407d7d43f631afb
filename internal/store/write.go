package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruanwenjun/spark/internal/ir"
)

// ErrPlanIDMismatch is returned when a submission's PlanID is not the
// content hash of its Plan bytes.
var ErrPlanIDMismatch = errors.New("plan id does not match plan bytes")

// WriteSubmission inserts a submission record into the store.
// Uses ON CONFLICT(operation_id) DO NOTHING for idempotency - duplicate
// operation ids are silently ignored. Reusing a (session_id, seq) pair for
// a different operation is an error.
//
// The PlanID must be the content hash of Plan; the bytes are stored
// unchanged.
func (s *Store) WriteSubmission(ctx context.Context, sub Submission) error {
	if got := ir.PlanIDFromBytes(sub.Plan); got != sub.PlanID {
		return fmt.Errorf("write submission %s: %w (have %s, computed %s)", sub.OperationID, ErrPlanIDMismatch, sub.PlanID, got)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions
		(operation_id, session_id, seq, plan_id, plan, root_kind, source_info, schema_version, tool_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation_id) DO NOTHING
	`,
		sub.OperationID,
		sub.SessionID,
		sub.Seq,
		sub.PlanID,
		sub.Plan,
		sub.RootKind,
		sub.SourceInfo,
		sub.SchemaVersion,
		sub.ToolVersion,
	)
	if err != nil {
		return fmt.Errorf("write submission: %w", err)
	}

	return nil
}

// WriteOutcome records the planning verdict for a submission.
// Uses ON CONFLICT DO NOTHING for idempotency: each submission has at most
// one outcome and the first one written wins.
//
// Note: The submission referenced by OperationID must exist (foreign key constraint).
func (s *Store) WriteOutcome(ctx context.Context, out Outcome) error {
	if out.Status != StatusAccepted && out.Status != StatusRejected {
		return fmt.Errorf("write outcome: invalid status %q", out.Status)
	}

	codesJSON, err := marshalCodes(out.Codes)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(operation_id, status, codes, message, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		out.OperationID,
		string(out.Status),
		codesJSON,
		out.Message,
		out.Seq,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	return nil
}
