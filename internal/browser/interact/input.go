package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
)

// clearScript empties an input through the native value setter so that
// frameworks tracking the value (React) observe the change.
const clearScript = `function() {
	this.focus();
	const proto = this instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) { desc.set.call(this, ''); } else { this.value = ''; }
	this.dispatchEvent(new Event('input', {bubbles: true}));
	return document.activeElement === this;
}`

// Fill replaces the value of a text input with text, typing it as key
// events.
func Fill(ctx context.Context, d Driver, el session.Element, text string, timeout time.Duration) error {
	ScrollIntoView(ctx, d, el)
	if err := WaitEnabled(ctx, d, el, timeout); err != nil {
		if errors.Is(err, session.ErrStaleElement) || ctx.Err() != nil {
			return err
		}
		logger().Debug("Input not ready before typing.", zap.Stringer("element", el), zap.Error(err))
	}

	var focused bool
	if err := d.CallOn(ctx, el, clearScript, &focused); err != nil {
		return fmt.Errorf("clear %s: %w", el, err)
	}
	if !focused {
		return fmt.Errorf("focus %s: %w", el, ErrNotInteractable)
	}
	if text == "" {
		return nil
	}
	if err := d.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("type into %s: %w", el, err)
	}
	return nil
}

// PressEnter focuses el and presses Enter.
func PressEnter(ctx context.Context, d Driver, el session.Element) error {
	if err := d.CallOn(ctx, el, `function() { this.focus(); return true; }`, nil); err != nil {
		return err
	}
	return d.SendKeys(ctx, kb.Enter)
}

// Text returns the rendered text of el, trimmed.
func Text(ctx context.Context, d Driver, el session.Element) (string, error) {
	var s string
	err := d.CallOn(ctx, el, `function() { return (this.innerText || this.textContent || '').trim(); }`, &s)
	return s, err
}

// Value returns the current value property of a form control.
func Value(ctx context.Context, d Driver, el session.Element) (string, error) {
	var s string
	err := d.CallOn(ctx, el, `function() { return this.value == null ? '' : String(this.value); }`, &s)
	return s, err
}

// Attribute returns the named attribute and whether it is present.
func Attribute(ctx context.Context, d Driver, el session.Element, name string) (string, bool, error) {
	var v *string
	if err := d.CallOn(ctx, el, `function(name) { return this.getAttribute(name); }`, &v, name); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}
