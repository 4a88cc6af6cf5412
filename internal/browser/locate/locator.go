// internal/browser/locate/locator.go
package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// Querier is the part of the browser session the locator needs.
type Querier interface {
	QueryAll(ctx context.Context, expression string) ([]session.Element, error)
	QueryFrom(ctx context.Context, el session.Element, fn string) ([]session.Element, error)
}

var _ Querier = (*session.Session)(nil)

// Options bounds a lookup.
type Options struct {
	// Timeout is the total budget shared by all strategies. Zero means a
	// single pass.
	Timeout  time.Duration
	Interval time.Duration
	// Scope, when set, is the root for every strategy: CSS selectors match
	// its descendants and XPath expressions are evaluated with it as the
	// context node (so "ancestor::form[1]" and ".//button" are relative).
	Scope *session.Element
	// Visible drops matches that are not rendered.
	Visible bool
	Logger  *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.L().Named("locate")
}

// Result is the outcome of one lookup. When Found is false the other fields
// are empty.
type Result struct {
	Found    bool
	Strategy Strategy
	Elements []session.Element
}

// First returns the first match in document order.
func (r Result) First() session.Element {
	if len(r.Elements) == 0 {
		return session.Element{}
	}
	return r.Elements[0]
}

const visibleFilter = `function(el) {
	const r = el.getBoundingClientRect();
	const s = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}`

func query(ctx context.Context, q Querier, opts Options, st Strategy) ([]session.Element, error) {
	fn := st.finder()
	if opts.Visible {
		fn = fmt.Sprintf("function(root) { return (%s)(root).filter(%s); }", fn, visibleFilter)
	}
	if opts.Scope != nil {
		return q.QueryFrom(ctx, *opts.Scope, fmt.Sprintf("function() { return (%s)(this); }", fn))
	}
	return q.QueryAll(ctx, fmt.Sprintf("(%s)(document)", fn))
}

// isPatternError recognises the browser rejecting a selector or expression.
func isPatternError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "is not a valid selector") ||
		strings.Contains(msg, "is not a valid XPath expression") ||
		strings.Contains(msg, "SyntaxError")
}

// round evaluates every strategy once, in order, and returns the first that
// matches. Per-strategy errors are recorded in lastErrs and otherwise count as
// no match. An invalid pattern is a miss like any other; the round gives up
// for good only when every strategy is invalid or the session is unusable.
func round(ctx context.Context, q Querier, opts Options, strategies []Strategy, lastErrs map[string]error) (Result, bool, error) {
	var invalid []error
	for _, st := range strategies {
		if st.err != nil {
			lastErrs[st.String()] = st.err
			invalid = append(invalid, st.err)
			continue
		}
		els, err := query(ctx, q, opts, st)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrStaleElement):
				return Result{}, false, wait.Permanent(err)
			case isPatternError(err):
				err = &InvalidPatternError{Strategy: st, Err: err}
				invalid = append(invalid, err)
			case ctx.Err() != nil:
				return Result{}, false, err
			}
			lastErrs[st.String()] = err
			continue
		}
		delete(lastErrs, st.String())
		if len(els) > 0 {
			return Result{Found: true, Strategy: st, Elements: els}, true, nil
		}
	}
	if len(invalid) == len(strategies) {
		return Result{}, false, wait.Permanent(errors.Join(invalid...))
	}
	return Result{}, false, nil
}

// pending reports whether lastErrs holds an error a later round could clear.
func pending(lastErrs map[string]error) bool {
	for _, err := range lastErrs {
		var invalid *InvalidPatternError
		if !errors.As(err, &invalid) {
			return true
		}
	}
	return false
}

func poll(ctx context.Context, q Querier, opts Options, strategies []Strategy) (Result, error) {
	if len(strategies) == 0 {
		return Result{}, errors.New("locate: no strategies given")
	}
	lastErrs := make(map[string]error)
	res, err := wait.Until(ctx, wait.Options{
		Timeout:  opts.Timeout,
		Interval: opts.Interval,
		Message:  "element " + strategies[0].String(),
	}, func(ctx context.Context) (Result, bool, error) {
		return round(ctx, q, opts, strategies, lastErrs)
	})
	if err != nil {
		var te *wait.TimeoutError
		if errors.As(err, &te) {
			return Result{}, &NotFoundError{
				Strategies: strategies,
				Timeout:    opts.Timeout,
				LastErrs:   lastErrs,
				Cause:      te,
			}
		}
		return Result{}, err
	}
	if res.Strategy.String() != strategies[0].String() {
		opts.logger().Debug("Locator matched a fallback strategy.",
			zap.Stringer("primary", strategies[0]),
			zap.Stringer("matched", res.Strategy),
		)
	}
	return res, nil
}

// Locate waits for the first strategy, primary then fallbacks in order, that
// yields an element and returns its first match. All strategies share one
// timeout and are retried together on every round.
func Locate(ctx context.Context, q Querier, opts Options, primary Strategy, fallbacks ...Strategy) (session.Element, error) {
	res, err := poll(ctx, q, opts, append([]Strategy{primary}, fallbacks...))
	if err != nil {
		return session.Element{}, err
	}
	return res.First(), nil
}

// All is Locate returning every match of the winning strategy.
func All(ctx context.Context, q Querier, opts Options, primary Strategy, fallbacks ...Strategy) ([]session.Element, error) {
	res, err := poll(ctx, q, opts, append([]Strategy{primary}, fallbacks...))
	if err != nil {
		return nil, err
	}
	return res.Elements, nil
}

// Find makes a single pass over the strategies without waiting. Absence is
// reported through Result.Found, not as an error.
func Find(ctx context.Context, q Querier, opts Options, strategies ...Strategy) (Result, error) {
	opts.Timeout = 0
	res, err := poll(ctx, q, opts, strategies)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return Result{}, nil
	}
	return res, err
}

// Count returns how many elements the first matching strategy yields right
// now, or zero.
func Count(ctx context.Context, q Querier, opts Options, strategies ...Strategy) (int, error) {
	res, err := Find(ctx, q, opts, strategies...)
	return len(res.Elements), err
}

// Gone waits until none of the strategies match anything.
func Gone(ctx context.Context, q Querier, opts Options, strategies ...Strategy) error {
	if len(strategies) == 0 {
		return errors.New("locate: no strategies given")
	}
	lastErrs := make(map[string]error)
	return wait.True(ctx, wait.Options{
		Timeout:  opts.Timeout,
		Interval: opts.Interval,
		Message:  "element to disappear: " + strategies[0].String(),
	}, func(ctx context.Context) (bool, error) {
		_, found, err := round(ctx, q, opts, strategies, lastErrs)
		if err != nil {
			return false, err
		}
		return !found && !pending(lastErrs), nil
	})
}
