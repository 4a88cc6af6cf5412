// internal/browser/interact/click.go
package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// Driver is the part of the browser session interactions need.
type Driver interface {
	CallOn(ctx context.Context, el session.Element, fn string, res interface{}, args ...interface{}) error
	State(ctx context.Context, el session.Element) (session.ElementState, error)
	ClickAt(ctx context.Context, x, y float64) error
	SendKeys(ctx context.Context, keys string) error
}

var _ Driver = (*session.Session)(nil)

const readyInterval = 100 * time.Millisecond

func logger() *zap.Logger { return zap.L().Named("interact") }

// ScrollIntoView centres el in the viewport. It is advisory: failures are
// logged and reported as false.
func ScrollIntoView(ctx context.Context, d Driver, el session.Element) bool {
	err := d.CallOn(ctx, el, `function() {
		this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
		return true;
	}`, nil)
	if err != nil {
		logger().Debug("scrollIntoView failed.", zap.Stringer("element", el), zap.Error(err))
		return false
	}
	return true
}

// WaitDisplayed waits until el is rendered with a non-empty box.
func WaitDisplayed(ctx context.Context, d Driver, el session.Element, timeout time.Duration) error {
	return waitState(ctx, d, el, timeout, "element to be displayed", func(st session.ElementState) bool {
		return st.Displayed
	})
}

// WaitEnabled waits until el is displayed and not disabled.
func WaitEnabled(ctx context.Context, d Driver, el session.Element, timeout time.Duration) error {
	return waitState(ctx, d, el, timeout, "element to be enabled", func(st session.ElementState) bool {
		return st.Displayed && st.Enabled
	})
}

func waitState(ctx context.Context, d Driver, el session.Element, timeout time.Duration, msg string, ok func(session.ElementState) bool) error {
	_, err := wait.Until(ctx, wait.Options{Timeout: timeout, Interval: readyInterval, Message: msg},
		func(ctx context.Context) (session.ElementState, bool, error) {
			st, err := d.State(ctx, el)
			if errors.Is(err, session.ErrStaleElement) {
				return st, false, wait.Permanent(err)
			}
			if err != nil {
				return st, false, err
			}
			return st, ok(st), nil
		})
	return err
}

type hitTest struct {
	OK          bool    `json:"ok"`
	Intercepted bool    `json:"intercepted"`
	By          string  `json:"by"`
	Reason      string  `json:"reason"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

const hitTestScript = `function() {
	const r = this.getBoundingClientRect();
	if (r.width === 0 || r.height === 0) { return {ok: false, reason: 'element has no size'}; }
	const x = r.left + r.width / 2, y = r.top + r.height / 2;
	const hit = document.elementFromPoint(x, y);
	if (!hit) { return {ok: false, reason: 'element centre is outside the viewport', x: x, y: y}; }
	if (hit !== this && !this.contains(hit)) {
		let by = hit.tagName.toLowerCase();
		if (hit.id) { by += '#' + hit.id; }
		if (typeof hit.className === 'string' && hit.className) { by += '.' + hit.className.trim().split(/\s+/).join('.'); }
		return {ok: false, intercepted: true, by: by, x: x, y: y};
	}
	return {ok: true, x: x, y: y};
}`

// nativeClick dispatches a real mouse click at the element centre after
// checking that nothing covers it.
func nativeClick(ctx context.Context, d Driver, el session.Element) error {
	var hit hitTest
	if err := d.CallOn(ctx, el, hitTestScript, &hit); err != nil {
		return err
	}
	switch {
	case hit.Intercepted:
		return fmt.Errorf("%w: %s at (%.0f, %.0f)", ErrClickIntercepted, hit.By, hit.X, hit.Y)
	case !hit.OK:
		return fmt.Errorf("%w: %s", ErrNotInteractable, hit.Reason)
	}
	return d.ClickAt(ctx, hit.X, hit.Y)
}

func forcedClick(ctx context.Context, d Driver, el session.Element) error {
	return d.CallOn(ctx, el, `function() { this.click(); return true; }`, nil)
}

// Click clicks el the way a user would, falling back to a script click.
//
// The element is scrolled into view and given up to timeout to become
// displayed and enabled; both steps are advisory. A native click is then
// dispatched at its centre. If that fails for any reason (the element is
// covered, off-screen, or the dispatch errors) HTMLElement.click() is invoked
// on it directly. A stale element fails immediately.
func Click(ctx context.Context, d Driver, el session.Element, timeout time.Duration) error {
	log := logger().With(zap.Stringer("element", el))

	ScrollIntoView(ctx, d, el)

	if err := WaitEnabled(ctx, d, el, timeout); err != nil {
		if errors.Is(err, session.ErrStaleElement) || ctx.Err() != nil {
			return err
		}
		log.Debug("Element not ready before click; clicking anyway.", zap.Error(err))
	}

	nativeErr := nativeClick(ctx, d, el)
	if nativeErr == nil {
		return nil
	}
	if errors.Is(nativeErr, session.ErrStaleElement) || ctx.Err() != nil {
		return nativeErr
	}

	log.Debug("Native click failed; forcing script click.", zap.Error(nativeErr))
	forcedErr := forcedClick(ctx, d, el)
	if forcedErr == nil {
		return nil
	}
	if errors.Is(forcedErr, session.ErrStaleElement) {
		return forcedErr
	}
	return &InteractionError{Target: el.String(), Native: nativeErr, Forced: forcedErr}
}
