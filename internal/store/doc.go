// Package store provides SQLite-backed durable storage for submitted plans.
//
// The store is an append-only log with two tables:
//   - Submissions: the encoded plan of each submission, keyed by operation id
//   - Outcomes: the planning verdict for a submission (at most one each)
//
// # Ordering
//
// All ordering uses seq INTEGER, a per-session logical clock, never
// timestamps. List queries use ORDER BY seq ASC, operation_id COLLATE BINARY
// ASC so that results are identical across runs.
//
// # Plans
//
// Plans are stored as their binary encoding, byte for byte as submitted.
// ReadPlan decodes on first use and caches the decoded tree; cached trees
// are shared and must be treated as read-only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
