// Package scenarios holds the SoundPuff end-to-end scenarios and the runner
// that executes them, each in its own browser session.
package scenarios

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/auth"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
	"github.com/xkilldash9x/soundpuff-e2e/internal/soundpuff"
)

// Status is the outcome of one scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Scenario is one end-to-end check.
type Scenario struct {
	Name        string
	Description string
	// NeedsLogin makes the runner log in with the configured credentials
	// before Run.
	NeedsLogin bool
	Run        func(ctx context.Context, env *Env) error
}

// Env is what a running scenario gets: its own app driver plus the
// configuration and a logger tagged with the scenario name.
type Env struct {
	App         *soundpuff.App
	Config      *config.Config
	Logger      *zap.Logger
	Credentials auth.Credentials

	screenshots []string
	pageSource  string
	pageErrors  []string
}

// Screenshot saves a labelled screenshot and records it in the result.
func (e *Env) Screenshot(ctx context.Context, label string) {
	if e.App == nil {
		return
	}
	if path := e.App.Screenshot(ctx, label); path != "" {
		e.screenshots = append(e.screenshots, path)
	}
}

// captureFailure keeps what is needed to debug a failed scenario: the app's
// uncaught exceptions and, with artifacts, a screenshot and the page source.
func (e *Env) captureFailure(ctx context.Context, label string, artifacts bool) {
	if e.App == nil {
		return
	}
	if artifacts {
		e.Screenshot(ctx, label)
		e.pageSource = e.App.SavePageSource(ctx, label)
	}
	e.pageErrors = e.App.PageErrors()
	if len(e.pageErrors) > 0 {
		e.Logger.Warn("The page threw uncaught exceptions.", zap.Strings("exceptions", e.pageErrors))
	}
}

// SkipError marks a scenario as skipped rather than failed.
type SkipError struct {
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err == nil {
		return "skipped: " + e.Reason
	}
	return fmt.Sprintf("skipped: %s: %v", e.Reason, e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }

// Skip ends a scenario as skipped.
func Skip(reason string) error { return &SkipError{Reason: reason} }

// AbsencePolicy says what a scenario does when the data it needs is not
// there.
type AbsencePolicy int

const (
	// FailOnAbsence keeps every error a failure.
	FailOnAbsence AbsencePolicy = iota
	// SkipOnAbsence turns a missing element or an exhausted wait into a
	// skip.
	SkipOnAbsence
)

// Absence applies policy to err. Only missing-element and timeout errors
// can become a skip; anything else, including configuration and
// interaction errors, stays a failure.
func Absence(err error, policy AbsencePolicy, reason string) error {
	if err == nil || policy != SkipOnAbsence {
		return err
	}
	var nf *locate.NotFoundError
	var te *wait.TimeoutError
	if errors.As(err, &nf) || errors.As(err, &te) {
		return &SkipError{Reason: reason, Err: err}
	}
	return err
}

// statusOf classifies a scenario error.
func statusOf(err error) Status {
	if err == nil {
		return StatusPassed
	}
	var skip *SkipError
	if errors.As(err, &skip) {
		return StatusSkipped
	}
	return StatusFailed
}

// Failf builds an assertion failure.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// AssertionError is a scenario check that did not hold.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string { return e.Message }
