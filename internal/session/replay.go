package session

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/store"
)

// Replay verifies that the stored log of a session still reproduces itself.
//
// Every stored plan is decoded and encoded again. The result must be
// byte-identical to the stored bytes and hash to the stored plan id. This
// holds for plans written by newer schemas too: unrecognized fields and
// variants are carried through decode and re-encoded unchanged.
//
// Replay never writes. Running it any number of times yields the same
// report.
func (s *Session) Replay(ctx context.Context) (ReplayReport, error) {
	return Replay(ctx, s.store, s.id)
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	SessionID  string
	Checked    int
	LastSeq    int64
	Mismatches []Mismatch
}

// OK reports whether every plan reproduced.
func (r ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// Mismatch describes one submission that did not reproduce.
type Mismatch struct {
	OperationID string `json:"operation_id"`
	Seq         int64  `json:"seq"`
	Reason      string `json:"reason"`
}

// Replay checks the log of session id in s. See Session.Replay.
func Replay(ctx context.Context, s *store.Store, id string) (ReplayReport, error) {
	subs, err := s.ListSessionSubmissions(ctx, id)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay %s: %w", id, err)
	}

	report := ReplayReport{SessionID: id, Mismatches: []Mismatch{}}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		report.LastSeq = sub.Seq

		if reason := reproduce(sub); reason != "" {
			report.Mismatches = append(report.Mismatches, Mismatch{
				OperationID: sub.OperationID,
				Seq:         sub.Seq,
				Reason:      reason,
			})
		}
	}
	return report, nil
}

// reproduce returns why sub fails to reproduce, or "" when it does.
func reproduce(sub store.Submission) string {
	if got := ir.PlanIDFromBytes(sub.Plan); got != sub.PlanID {
		return fmt.Sprintf("stored plan id %s does not match stored bytes (%s)", sub.PlanID, got)
	}

	rel, err := ir.Unmarshal(sub.Plan)
	if err != nil {
		return fmt.Sprintf("decode: %v", err)
	}
	if rel.WhichOneof() != sub.RootKind {
		return fmt.Sprintf("root kind %s, stored %s", rel.WhichOneof(), sub.RootKind)
	}

	again, err := ir.Marshal(rel)
	if err != nil {
		return fmt.Sprintf("re-encode: %v", err)
	}
	if !bytes.Equal(again, sub.Plan) {
		return fmt.Sprintf("re-encoding differs: %d bytes, stored %d", len(again), len(sub.Plan))
	}
	return ""
}
