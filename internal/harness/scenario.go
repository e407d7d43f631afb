package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a sequence of plans
// submitted through one session, with per-step expectations and
// assertions over the resulting log.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the session id steps are submitted under.
	// Defaults to "scenario".
	Session string `yaml:"session,omitempty"`

	// Steps are submitted in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the stored log after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one plan to submit. Exactly one of SQL, Plan and Document is set.
type Step struct {
	// Name identifies the step in assertions and output.
	Name string `yaml:"name"`

	// SQL is query text parsed into a plan.
	SQL string `yaml:"sql,omitempty"`

	// Plan is the path of a CUE or JSON plan document, relative to the
	// scenario file.
	Plan string `yaml:"plan,omitempty"`

	// Document is an inline plan document.
	Document map[string]any `yaml:"document,omitempty"`

	// Expect specifies what the step must produce. If nil, only the
	// submission itself is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies expected step behavior. Unset fields are not checked.
type Expect struct {
	// Which is the oneof name of the root variant.
	Which string `yaml:"which,omitempty"`

	// Valid requires the plan to be accepted (true) or refused (false).
	Valid *bool `yaml:"valid,omitempty"`

	// Errors are the structural validation codes, in order.
	Errors []string `yaml:"errors,omitempty"`

	// Conflicts are the planner conflict codes, in order.
	Conflicts []string `yaml:"conflicts,omitempty"`

	// Warnings are the planner warning codes, in order.
	Warnings []string `yaml:"warnings,omitempty"`

	// SQL is the expected rendering of the plan as query text.
	SQL string `yaml:"sql,omitempty"`
}

// Assertion validates the trace or the stored log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "submission_count": exactly Count submissions were stored
	// - "same_plan": all listed Steps have the same plan id
	// - "distinct_plans": all listed Steps have different plan ids
	// - "replay": the session log reproduces byte for byte
	Type string `yaml:"type"`

	// Count is the expected number of submissions (submission_count).
	Count int `yaml:"count,omitempty"`

	// Steps names the compared steps (same_plan, distinct_plans).
	Steps []string `yaml:"steps,omitempty"`
}

// Assertion type constants.
const (
	AssertSubmissionCount = "submission_count"
	AssertSamePlan        = "same_plan"
	AssertDistinctPlans   = "distinct_plans"
	AssertReplay          = "replay"
)

// LoadScenario reads and parses a scenario YAML file.
// Plan paths are resolved relative to the directory of the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. Relative plan paths are joined to
// basePath when it is not empty.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, step := range scenario.Steps {
		if step.Plan != "" && !filepath.IsAbs(step.Plan) && basePath != "" {
			scenario.Steps[i].Plan = filepath.Join(basePath, step.Plan)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true

		sources := 0
		if step.SQL != "" {
			sources++
		}
		if step.Plan != "" {
			sources++
		}
		if step.Document != nil {
			sources++
		}
		if sources != 1 {
			return fmt.Errorf("steps[%d]: exactly one of sql, plan or document is required", i)
		}
		if step.Plan != "" {
			if _, err := os.Stat(step.Plan); os.IsNotExist(err) {
				return fmt.Errorf("steps[%d]: plan file not found: %s", i, step.Plan)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSubmissionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for submission_count", index)
		}
	case AssertSamePlan, AssertDistinctPlans:
		if len(a.Steps) < 2 {
			return fmt.Errorf("assertions[%d]: at least two steps are required for %s", index, a.Type)
		}
		for _, name := range a.Steps {
			if !steps[name] {
				return fmt.Errorf("assertions[%d]: unknown step %q", index, name)
			}
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
