// Package harness provides conformance testing for plan producers.
//
// A scenario submits a sequence of plans through a real session and store
// and checks what each step produced.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session: optional-session-id
//	steps:
//	  - name: from_sql
//	    sql: "SELECT a FROM t WHERE a > 5"
//	    expect:
//	      which: project
//	      valid: true
//	      sql: "SELECT a FROM t WHERE (a > 5)"
//	  - name: from_file
//	    plan: plans/join.cue
//	    expect:
//	      conflicts: [E301]
//	  - name: inline
//	    document:
//	      limit: {input: {read: {table: t}}, limit: 10}
//	assertions:
//	  - type: same_plan
//	    steps: [from_sql, inline]
//	  - type: replay
//
// Exactly one of sql, plan and document is set per step. Plan paths are
// relative to the scenario file.
//
// # Assertion Types
//
//   - submission_count: exactly count plans reached the store
//   - same_plan: the listed steps share one plan id
//   - distinct_plans: the listed steps all have different plan ids
//   - replay: the session log decodes and re-encodes byte for byte
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite database, with
// operation ids from testutil.SequentialIDGenerator ("op-1", "op-2", ...)
// and seq numbers from a new session clock. Identical scenarios therefore
// produce identical traces, which RunWithGolden compares against
// testdata/golden/<name>.golden.
package harness
