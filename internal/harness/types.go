package harness

// Step statuses recorded in the trace.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusInvalid  = "invalid" // refused before transmission
)

// StepEvent records what happened to one step.
type StepEvent struct {
	Step        string         `json:"step"`
	Seq         int64          `json:"seq,omitempty"`
	OperationID string         `json:"operation_id,omitempty"`
	Which       string         `json:"which,omitempty"`
	PlanID      string         `json:"plan_id,omitempty"`
	Status      string         `json:"status"`
	Codes       []string       `json:"codes"`
	Document    map[string]any `json:"document,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []StepEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// event returns the trace event of the named step.
func (r *Result) event(step string) (StepEvent, bool) {
	for _, e := range r.Trace {
		if e.Step == step {
			return e, true
		}
	}
	return StepEvent{}, false
}
