package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruanwenjun/spark/internal/ir"
)

const submissionColumns = `operation_id, session_id, seq, plan_id, plan, root_kind, source_info, schema_version, tool_version`

// ReadSubmission retrieves a single submission by operation id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSubmission(ctx context.Context, operationID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE operation_id = ?
	`, operationID)

	var sub Submission
	if err := row.Scan(
		&sub.OperationID, &sub.SessionID, &sub.Seq, &sub.PlanID, &sub.Plan,
		&sub.RootKind, &sub.SourceInfo, &sub.SchemaVersion, &sub.ToolVersion,
	); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns every submission with deterministic ordering:
// ORDER BY seq ASC, operation_id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListSubmissions(ctx context.Context) ([]Submission, error) {
	return s.querySubmissions(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		ORDER BY seq ASC, operation_id COLLATE BINARY ASC
	`)
}

// ListSessionSubmissions returns the submissions of one session in seq order.
func (s *Store) ListSessionSubmissions(ctx context.Context, sessionID string) ([]Submission, error) {
	return s.querySubmissions(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE session_id = ?
		ORDER BY seq ASC, operation_id COLLATE BINARY ASC
	`, sessionID)
}

// FindByPlanID returns every submission of the plan with the given content
// hash, across sessions.
func (s *Store) FindByPlanID(ctx context.Context, planID string) ([]Submission, error) {
	return s.querySubmissions(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE plan_id = ?
		ORDER BY seq ASC, operation_id COLLATE BINARY ASC
	`, planID)
}

func (s *Store) querySubmissions(ctx context.Context, query string, args ...any) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.OperationID, &sub.SessionID, &sub.Seq, &sub.PlanID, &sub.Plan,
			&sub.RootKind, &sub.SourceInfo, &sub.SchemaVersion, &sub.ToolVersion,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return subs, nil
}

// ReadPlan returns the decoded plan of a submission. Decoded plans are
// cached per operation id; the returned tree is shared and must not be
// modified.
// Returns sql.ErrNoRows if the submission does not exist.
func (s *Store) ReadPlan(ctx context.Context, operationID string) (*ir.Relation, error) {
	if rel, ok := s.plans.Load(operationID); ok {
		return rel, nil
	}

	var plan []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT plan FROM submissions WHERE operation_id = ?
	`, operationID).Scan(&plan)
	if err != nil {
		return nil, err
	}

	rel, err := ir.Unmarshal(plan)
	if err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", operationID, err)
	}

	// Concurrent readers may race here; all of them get the first stored tree.
	actual, _ := s.plans.LoadOrStore(operationID, rel)
	return actual, nil
}

// CachedPlans returns the number of decoded plans held in memory.
func (s *Store) CachedPlans() int {
	return s.plans.Size()
}

// ReadOutcome retrieves the outcome of a submission.
// Returns sql.ErrNoRows if none was recorded.
func (s *Store) ReadOutcome(ctx context.Context, operationID string) (Outcome, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT operation_id, status, codes, message, seq
		FROM outcomes
		WHERE operation_id = ?
	`, operationID)

	return scanOutcome(row)
}

// ReadAllOutcomes returns all outcomes ordered by seq ASC, operation_id ASC.
func (s *Store) ReadAllOutcomes(ctx context.Context) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, status, codes, message, seq
		FROM outcomes
		ORDER BY seq ASC, operation_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
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

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var _ scanner = (*sql.Row)(nil)

func scanOutcome(row scanner) (Outcome, error) {
	var out Outcome
	var status, codesJSON string
	if err := row.Scan(&out.OperationID, &status, &codesJSON, &out.Message, &out.Seq); err != nil {
		return Outcome{}, err
	}
	out.Status = Status(status)

	codes, err := unmarshalCodes(codesJSON)
	if err != nil {
		return Outcome{}, err
	}
	out.Codes = codes
	return out, nil
}
