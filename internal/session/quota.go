package session

import (
	"errors"
	"fmt"
)

// DefaultMaxSubmissions bounds how many plans one session may submit.
const DefaultMaxSubmissions = 10000

// quotaEnforcer counts submissions and enforces the session limit.
// Guarded by Session.mu.
type quotaEnforcer struct {
	max     int
	current int
}

func newQuotaEnforcer(limit, start int) *quotaEnforcer {
	return &quotaEnforcer{max: limit, current: start}
}

// check reports whether one more submission fits; it does not consume it.
func (q *quotaEnforcer) check(sessionID string) error {
	if q.current+1 > q.max {
		return &QuotaExceededError{
			SessionID: sessionID,
			Count:     q.current + 1,
			Limit:     q.max,
		}
	}
	return nil
}

func (q *quotaEnforcer) consume() {
	q.current++
}

// QuotaExceededError is returned by Submit when the session has reached
// its submission limit. Nothing is written to the store.
type QuotaExceededError struct {
	SessionID string
	Count     int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("session %s exceeded submission quota: %d submissions > %d limit",
		e.SessionID, e.Count, e.Limit)
}

// IsQuotaExceeded reports whether err is or wraps a *QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
