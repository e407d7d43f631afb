package store

import (
	"context"
	"fmt"
)

// SessionState summarizes what a session has submitted and how each
// submission was planned.
type SessionState struct {
	SessionID    string
	Submissions  []Submission
	Outcomes     []Outcome
	LastSeq      int64
	PendingCount int // submissions without an outcome
	Rejected     int
}

// GetSessionState retrieves the full log of one session.
func (s *Store) GetSessionState(ctx context.Context, sessionID string) (SessionState, error) {
	state := SessionState{SessionID: sessionID}

	subs, err := s.ListSessionSubmissions(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	state.Submissions = subs

	outcomes, err := s.readSessionOutcomes(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	state.Outcomes = outcomes

	planned := make(map[string]bool, len(outcomes))
	for _, out := range outcomes {
		planned[out.OperationID] = true
		if out.Status == StatusRejected {
			state.Rejected++
		}
	}

	for _, sub := range subs {
		if sub.Seq > state.LastSeq {
			state.LastSeq = sub.Seq
		}
		if !planned[sub.OperationID] {
			state.PendingCount++
		}
	}

	return state, nil
}

// GetLastSeq returns the highest seq used by a session, or 0 if the session
// has not submitted anything.
func (s *Store) GetLastSeq(ctx context.Context, sessionID string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM submissions WHERE session_id = ?
	`, sessionID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return last, nil
}

// ListSessions returns the distinct session ids in the log, sorted.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session_id FROM submissions ORDER BY session_id COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sessions = append(sessions, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// FindPendingSubmissions returns submissions that were stored but never
// planned, for example because the process stopped between the two writes.
// Results ordered by seq ASC, operation_id ASC.
func (s *Store) FindPendingSubmissions(ctx context.Context) ([]Submission, error) {
	return s.querySubmissions(ctx, `
		SELECT s.operation_id, s.session_id, s.seq, s.plan_id, s.plan, s.root_kind,
		       s.source_info, s.schema_version, s.tool_version
		FROM submissions s
		LEFT JOIN outcomes o ON s.operation_id = o.operation_id
		WHERE o.operation_id IS NULL
		ORDER BY s.seq ASC, s.operation_id COLLATE BINARY ASC
	`)
}

func (s *Store) readSessionOutcomes(ctx context.Context, sessionID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.operation_id, o.status, o.codes, o.message, o.seq
		FROM outcomes o
		JOIN submissions s ON s.operation_id = o.operation_id
		WHERE s.session_id = ?
		ORDER BY o.seq ASC, o.operation_id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		out, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, out)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return outcomes, nil
}
