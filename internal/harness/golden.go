package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ruanwenjun/spark/internal/compiler"
)

// TraceSnapshot captures the trace of a scenario execution for golden
// comparison. Plan ids are left out; plans appear as their canonical
// document, which is readable in review.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	Session      string      `json:"session,omitempty"`
	Trace        []StepEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		codes := make([]any, len(event.Codes))
		for j, c := range event.Codes {
			codes[j] = c
		}
		eventMap := map[string]any{
			"step":   event.Step,
			"status": event.Status,
			"codes":  codes,
		}
		if event.Seq != 0 {
			eventMap["seq"] = event.Seq
		}
		if event.OperationID != "" {
			eventMap["operation_id"] = event.OperationID
		}
		if event.Which != "" {
			eventMap["which"] = event.Which
		}
		if event.Document != nil {
			eventMap["document"] = event.Document
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.Session != "" {
		result["session"] = s.Session
	}
	return result
}

// MarshalTrace returns the canonical JSON snapshot of a result.
func MarshalTrace(scenarioName, sessionID string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      sessionID,
		Trace:        result.Trace,
	}
	return compiler.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, scenario.Session, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName, sessionID string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, sessionID, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
