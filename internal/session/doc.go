// Package session implements the client side of plan submission.
//
// A Session owns a logical clock and an operation id generator. Submit
// validates a plan, encodes it once, derives its content-addressed plan id,
// stamps it with the next seq and a fresh operation id, and appends it to
// the store. The planner verdict (internal/analyzer) is stored next to it
// as the submission outcome.
//
// # Freezing
//
// A relation tree is considered frozen once it has been transmitted.
// Submitting the same *ir.Relation again returns ErrAlreadySubmitted; an
// equal but separately built tree is a new submission with the same plan
// id.
//
// # Replay
//
// Replay is read-only. It decodes every stored plan of the session and
// re-encodes it, checking that the bytes and the plan id are unchanged.
// Because decoding keeps unrecognized fields, plans written by newer
// clients pass as well.
package session
