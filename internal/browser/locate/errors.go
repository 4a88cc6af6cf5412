package locate

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// NotFoundError is returned when no strategy produced an element before the
// timeout. It unwraps to the underlying *wait.TimeoutError.
type NotFoundError struct {
	Strategies []Strategy
	Timeout    time.Duration
	// LastErrs holds, per strategy, the error from the final round (if any).
	LastErrs map[string]error
	Cause    *wait.TimeoutError
}

func (e *NotFoundError) Error() string {
	names := make([]string, len(e.Strategies))
	for i, s := range e.Strategies {
		names[i] = s.String()
	}
	msg := fmt.Sprintf("no element matched [%s] within %s", strings.Join(names, ", "), e.Timeout)
	for _, s := range e.Strategies {
		if err := e.LastErrs[s.String()]; err != nil {
			msg += fmt.Sprintf("; %s: %v", s, err)
		}
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// InvalidPatternError reports a strategy whose pattern cannot be evaluated.
// The locator treats it as a miss and only fails with it when no strategy
// of the lookup is valid.
type InvalidPatternError struct {
	Strategy Strategy
	Err      error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid locator %s: %v", e.Strategy, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }
