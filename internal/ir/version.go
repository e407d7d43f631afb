package ir

// Version constants for the plan schema and tooling.
const (
	// SchemaVersion is the plan wire schema version. Field numbers are
	// append-only, so newer schemas stay readable by older builds.
	SchemaVersion = "1"

	// ToolVersion is the sparkplan tool version.
	ToolVersion = "0.1.0"
)
