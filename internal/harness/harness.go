package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"cuelang.org/go/cue/cuecontext"

	"github.com/ruanwenjun/spark/internal/compiler"
	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/querysql"
	"github.com/ruanwenjun/spark/internal/session"
	"github.com/ruanwenjun/spark/internal/store"
	"github.com/ruanwenjun/spark/internal/testutil"
)

// DefaultSession is the session id used when a scenario names none.
const DefaultSession = "scenario"

// Harness is the scenario execution engine.
// It submits steps through a real session backed by a fresh store, with
// deterministic operation ids.
type Harness struct {
	store   *store.Store
	session *session.Session
	ids     *testutil.SequentialIDGenerator
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Operation ids are "op-1", "op-2", ... in step order, so identical
// scenarios produce identical traces.
//
// An error is returned only when the scenario cannot be executed, for
// example when a plan document fails to compile or SQL fails to parse.
// Failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-provided context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sessionID := scenario.Session
	if sessionID == "" {
		sessionID = DefaultSession
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	ids := testutil.NewSequentialIDGenerator("op")
	sess, err := session.New(ctx, st, sessionID, ids, session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	h := &Harness{
		store:   st,
		session: sess,
		ids:     ids,
		logger:  logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
	}

	actx := &AssertionContext{
		Store:   st,
		Session: sess,
		Ctx:     ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep builds the plan of one step, submits it and checks the
// step's expectations.
func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) error {
	event := StepEvent{Step: step.Name, Codes: []string{}}

	rel, err := buildPlan(step)
	var invalid *ir.InvalidPlanError
	switch {
	case errors.As(err, &invalid):
		event.Status = StatusInvalid
		event.Codes = validationCodes(invalid)
	case err != nil:
		return fmt.Errorf("build plan: %w", err)
	}

	var analysis *session.Submission
	if rel != nil {
		event.Which = rel.WhichOneof()
		sub, err := h.session.Submit(ctx, rel)
		switch {
		case errors.As(err, &invalid):
			event.Status = StatusInvalid
			event.Codes = validationCodes(invalid)
		case err != nil:
			return fmt.Errorf("submit: %w", err)
		default:
			analysis = &sub
			event.Seq = sub.Seq
			event.OperationID = sub.OperationID
			event.PlanID = sub.PlanID
			event.Status = string(sub.Outcome.Status)
			event.Codes = sub.Outcome.Codes
			if event.Codes == nil {
				event.Codes = []string{}
			}
			doc, err := compiler.Decompile(rel)
			if err != nil {
				return fmt.Errorf("decompile: %w", err)
			}
			event.Document = doc
		}
	}

	h.logger.Debug("step executed",
		"step", step.Name,
		"status", event.Status,
		"codes", event.Codes,
	)

	result.Trace = append(result.Trace, event)

	if step.Expect != nil {
		for _, msg := range checkExpect(step, rel, event, invalid, analysis) {
			result.AddError(fmt.Sprintf("step %s: %s", step.Name, msg))
		}
	}
	return nil
}

// buildPlan turns the step source into a relation.
func buildPlan(step Step) (*ir.Relation, error) {
	switch {
	case step.SQL != "":
		return querysql.Parse(step.SQL)
	case step.Plan != "":
		src, err := os.ReadFile(step.Plan)
		if err != nil {
			return nil, err
		}
		return compiler.CompileBytes(step.Plan, src)
	default:
		v := cuecontext.New().Encode(step.Document)
		return compiler.CompileValue(v)
	}
}

// checkExpect compares a step against its expect clause.
func checkExpect(step Step, rel *ir.Relation, event StepEvent, invalid *ir.InvalidPlanError, sub *session.Submission) []string {
	exp := step.Expect
	var failures []string
	failf := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if exp.Which != "" && event.Which != exp.Which {
		failf("which = %q, expected %q", event.Which, exp.Which)
	}

	if exp.Valid != nil {
		valid := event.Status == StatusAccepted
		if valid != *exp.Valid {
			failf("valid = %t (status %s, codes %v), expected %t", valid, event.Status, event.Codes, *exp.Valid)
		}
	}

	if exp.Errors != nil {
		var got []string
		if invalid != nil && event.Status == StatusInvalid {
			got = validationCodes(invalid)
		}
		if !codesEqual(got, exp.Errors) {
			failf("errors = %v, expected %v", got, exp.Errors)
		}
	}

	if exp.Conflicts != nil || exp.Warnings != nil {
		var conflicts, warnings []string
		if sub != nil {
			conflicts = diagnosticCodes(sub.Analysis.Conflicts)
			warnings = diagnosticCodes(sub.Analysis.Warnings)
		}
		if exp.Conflicts != nil && !codesEqual(conflicts, exp.Conflicts) {
			failf("conflicts = %v, expected %v", conflicts, exp.Conflicts)
		}
		if exp.Warnings != nil && !codesEqual(warnings, exp.Warnings) {
			failf("warnings = %v, expected %v", warnings, exp.Warnings)
		}
	}

	if exp.SQL != "" {
		if rel == nil {
			failf("sql: no plan to render")
		} else if got, err := querysql.Render(rel); err != nil {
			failf("sql: %v", err)
		} else if got != exp.SQL {
			failf("sql = %q, expected %q", got, exp.SQL)
		}
	}

	return failures
}

func validationCodes(e *ir.InvalidPlanError) []string {
	codes := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		codes[i] = ve.Code
	}
	return codes
}

func codesEqual(got, want []string) bool {
	if len(got) == 0 && len(want) == 0 {
		return true
	}
	return slices.Equal(got, want)
}
