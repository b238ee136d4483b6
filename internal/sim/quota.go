package sim

import (
	"errors"
	"fmt"
)

// TickQuota counts ticks in a run and enforces an upper bound.
//
// A run asked for more ticks than its quota fails on the first tick past
// the limit instead of looping for hours on a typo.
type TickQuota struct {
	maxTicks int64
	current  int64
}

// NewTickQuota creates a quota with the given limit. A limit <= 0 disables
// the check.
func NewTickQuota(maxTicks int64) *TickQuota {
	return &TickQuota{maxTicks: maxTicks}
}

// Check counts one tick and fails once the limit is exceeded.
func (q *TickQuota) Check(program string) error {
	q.current++
	if q.maxTicks > 0 && q.current > q.maxTicks {
		return &TicksExceededError{
			Program: program,
			Ticks:   q.current,
			Limit:   q.maxTicks,
		}
	}
	return nil
}

// Current returns the number of ticks counted.
func (q *TickQuota) Current() int64 {
	return q.current
}

// MaxTicks returns the limit.
func (q *TickQuota) MaxTicks() int64 {
	return q.maxTicks
}

// TicksExceededError is returned when a run exceeds its tick quota.
type TicksExceededError struct {
	Program string
	Ticks   int64
	Limit   int64
}

// Error implements the error interface.
func (e *TicksExceededError) Error() string {
	return fmt.Sprintf("program %s exceeded tick quota: %d ticks > %d limit",
		e.Program, e.Ticks, e.Limit)
}

// IsTicksExceededError reports whether err is or wraps a *TicksExceededError.
func IsTicksExceededError(err error) bool {
	var te *TicksExceededError
	return errors.As(err, &te)
}
