package store

// Submission is one plan as it was transmitted.
type Submission struct {
	OperationID   string
	SessionID     string
	Seq           int64
	PlanID        string
	Plan          []byte // binary encoding, as submitted
	RootKind      string // oneof name of the root variant
	SourceInfo    string
	SchemaVersion string
	ToolVersion   string
}

// Status is the planning verdict recorded for a submission.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Outcome records how a submission was planned. Codes lists diagnostic
// codes; Message is the human-readable summary.
type Outcome struct {
	OperationID string
	Status      Status
	Codes       []string
	Message     string
	Seq         int64
}
