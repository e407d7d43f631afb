// Package ir defines the logical query plan exchanged between a client and
// a remote SQL engine.
//
// A plan is a tree of Relation nodes. Each node carries exactly one
// variant (Read, Filter, Join, ...) plus optional Common metadata. The
// variant set is closed; Unknown stands in for variants added by newer
// schema versions, whose bytes are kept and re-emitted unchanged.
//
// All other internal packages import ir; ir imports only expr and wire.
//
// Key design constraints:
//   - Enums reserve 0 for UNSPECIFIED; it is never coerced to a default
//   - Optional wrappers (Step, NumPartitions, Seed) are pointers; nil means unset
//   - Marshal refuses structurally invalid trees; semantic checks live in analyzer
//   - Encoding is deterministic, so PlanID is a pure function of the tree
package ir
