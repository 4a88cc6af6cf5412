package wait

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when a wait exhausts its budget.
type TimeoutError struct {
	Message  string
	Timeout  time.Duration
	Elapsed  time.Duration
	Attempts int
	// Last is the value the condition returned on its final evaluation.
	Last any
	// LastErr is the transient error from the final evaluation, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "condition"
	}
	s := fmt.Sprintf("timed out after %s waiting for %s (%d attempts)", e.Timeout, msg, e.Attempts)
	if e.LastErr != nil {
		s += ": last error: " + e.LastErr.Error()
	}
	return s
}

// Unwrap exposes the last transient error.
func (e *TimeoutError) Unwrap() error { return e.LastErr }

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks a condition error as final so Until stops retrying and
// returns it unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
