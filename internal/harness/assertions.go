package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ruanwenjun/spark/internal/adapt"
	"github.com/ruanwenjun/spark/internal/analyzer"
	"github.com/ruanwenjun/spark/internal/session"
	"github.com/ruanwenjun/spark/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []StepEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s %v\n", i+1, event.Step, event.Which, event.Status, event.Codes)
	}

	return buf.String()
}

// AssertionContext provides access to the store and session for
// assertions that inspect the log.
type AssertionContext struct {
	Store   *store.Store
	Session *session.Session
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSubmissionCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: submission_count requires database context", i)
			} else {
				err = assertSubmissionCount(actx, result.Trace, assertion)
			}
		case AssertSamePlan:
			err = assertPlans(result, assertion, true)
		case AssertDistinctPlans:
			err = assertPlans(result, assertion, false)
		case AssertReplay:
			if actx == nil || actx.Session == nil {
				err = fmt.Errorf("assertion[%d]: replay requires a session", i)
			} else {
				err = assertReplay(actx, result.Trace)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertSubmissionCount checks how many plans reached the store.
func assertSubmissionCount(actx *AssertionContext, trace []StepEvent, assertion Assertion) error {
	subs, err := actx.Store.ListSubmissions(actx.Ctx)
	if err != nil {
		return fmt.Errorf("submission_count: %w", err)
	}
	if len(subs) != assertion.Count {
		return &AssertionError{
			Type:     AssertSubmissionCount,
			Expected: fmt.Sprintf("%d submissions", assertion.Count),
			Actual:   fmt.Sprintf("%d submissions", len(subs)),
			Trace:    trace,
		}
	}
	return nil
}

// assertPlans checks that the listed steps share one plan id (same) or
// all differ. Steps refused before transmission have no plan id and fail.
func assertPlans(result *Result, assertion Assertion, same bool) error {
	seen := make(map[string]string) // plan id -> step
	var first string
	for _, name := range assertion.Steps {
		event, ok := result.event(name)
		if !ok || event.PlanID == "" {
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("step %s to be submitted", name),
				Actual:   "no plan id",
				Trace:    result.Trace,
			}
		}

		if same {
			if first == "" {
				first = event.PlanID
			} else if event.PlanID != first {
				return &AssertionError{
					Type:     assertion.Type,
					Expected: fmt.Sprintf("steps %v to share one plan id", assertion.Steps),
					Actual:   fmt.Sprintf("step %s has a different plan id", name),
					Trace:    result.Trace,
				}
			}
			continue
		}

		if prev, dup := seen[event.PlanID]; dup {
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("steps %v to have distinct plan ids", assertion.Steps),
				Actual:   fmt.Sprintf("steps %s and %s have the same plan id", prev, name),
				Trace:    result.Trace,
			}
		}
		seen[event.PlanID] = name
	}
	return nil
}

// assertReplay checks that the session log reproduces.
func assertReplay(actx *AssertionContext, trace []StepEvent) error {
	report, err := actx.Session.Replay(actx.Ctx)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if !report.OK() {
		reasons := make([]string, len(report.Mismatches))
		for i, m := range report.Mismatches {
			reasons[i] = fmt.Sprintf("%s: %s", m.OperationID, m.Reason)
		}
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "every stored plan to reproduce",
			Actual:   strings.Join(reasons, "; "),
			Trace:    trace,
		}
	}
	return nil
}

func diagnosticCodes(ds []analyzer.Diagnostic) []string {
	return slices.Collect(adapt.Map(slices.Values(ds), func(d analyzer.Diagnostic) string { return d.Code }))
}
