// Package analyzer performs the semantic checks a planner applies to a
// structurally valid plan before physical planning.
//
// The ir package only guarantees structure: every node has a variant and
// every input is present. Rules that relate fields to each other live
// here, on the consuming side of the wire:
//
//   - Join.UsingColumns and Join.JoinCondition are mutually exclusive
//   - Sample bounds lie in [0, 1] with lower <= upper
//   - Limit and Offset are non-negative
//   - An explicit Range step is non-zero; explicit partition counts are positive
//   - Deduplicate names columns or uses all columns, not both
//   - ByName applies only to UNION
//
// Unspecified enum values are not conflicts. They are reported as
// warnings meaning "the engine default applies", and are never rewritten
// to a concrete value.
//
// Analyze is a pure function with no side effects.
package analyzer
