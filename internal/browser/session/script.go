// internal/browser/session/script.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// objectGroup groups every handle the harness creates so they can be
// released together.
const objectGroup = "soundpuff-e2e"

// Evaluate runs a JavaScript expression in the page and decodes its JSON
// result into res. Promises are awaited. res may be nil.
func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	var raw []byte
	var target interface{}
	if res != nil {
		target = &raw
	}
	err := s.RunActions(ctx,
		chromedp.Evaluate(expression, target, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	if res == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("decode script result: %w (payload: %s)", err, string(raw))
	}
	return nil
}

// QueryAll evaluates an expression that yields an array-like collection of
// DOM nodes and returns a handle per node, in collection order. A null or
// undefined result yields no elements.
func (s *Session) QueryAll(ctx context.Context, expression string) ([]Element, error) {
	gen := s.Generation()
	var elements []Element

	err := s.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		list, exp, err := runtime.Evaluate(expression).
			WithObjectGroup(objectGroup).
			WithAwaitPromise(true).
			WithSilent(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		elements, err = collect(ctx, list, gen)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	return elements, nil
}

// QueryFrom is QueryAll relative to el: fn is called with `this` bound to el
// and must return an array-like collection of nodes.
func (s *Session) QueryFrom(ctx context.Context, el Element, fn string) ([]Element, error) {
	if el.IsZero() {
		return nil, errors.New("query from unresolved element")
	}
	gen := s.Generation()
	if el.generation != gen {
		return nil, ErrStaleElement
	}
	var elements []Element

	err := s.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		list, exp, err := runtime.CallFunctionOn(fn).
			WithObjectID(el.ObjectID).
			WithObjectGroup(objectGroup).
			WithAwaitPromise(true).
			WithSilent(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		elements, err = collect(ctx, list, gen)
		return err
	}))
	if err != nil {
		if el.generation != s.Generation() {
			return nil, ErrStaleElement
		}
		return nil, fmt.Errorf("query from %s: %w", el, err)
	}
	return elements, nil
}

// collect turns a remote array-like object into element handles and
// releases the collection itself.
func collect(ctx context.Context, list *runtime.RemoteObject, gen uint64) ([]Element, error) {
	if list == nil || list.ObjectID == "" {
		return nil, nil
	}
	defer func() { _ = runtime.ReleaseObject(list.ObjectID).Do(ctx) }()

	length, exp, err := runtime.CallFunctionOn("function() { return this.length >>> 0; }").
		WithObjectID(list.ObjectID).
		WithReturnByValue(true).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		return nil, exp
	}
	n, err := strconv.Atoi(string(length.Value))
	if err != nil {
		return nil, fmt.Errorf("query result is not a collection: %w", err)
	}

	elements := make([]Element, 0, n)
	for i := 0; i < n; i++ {
		item, exp, err := runtime.CallFunctionOn(fmt.Sprintf("function() { return this[%d]; }", i)).
			WithObjectID(list.ObjectID).
			WithObjectGroup(objectGroup).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if exp != nil {
			return nil, exp
		}
		if item == nil || item.ObjectID == "" {
			continue
		}
		elements = append(elements, Element{
			ObjectID:    item.ObjectID,
			Description: item.Description,
			generation:  gen,
		})
	}
	return elements, nil
}

type callResult struct {
	Stale bool                `json:"stale"`
	Value jsoniter.RawMessage `json:"value"`
}

// CallOn invokes fn with `this` bound to el. Arguments are passed as JSON
// values and the return value is decoded into res, which may be nil.
// It returns ErrStaleElement when el belongs to a previous document or has
// been removed from the DOM.
func (s *Session) CallOn(ctx context.Context, el Element, fn string, res interface{}, args ...interface{}) error {
	if el.IsZero() {
		return errors.New("call on unresolved element")
	}
	if el.generation != s.Generation() {
		return ErrStaleElement
	}

	wrapped := fmt.Sprintf(`async function(...args) {
		if (!this.isConnected) { return {stale: true}; }
		const value = await (%s).apply(this, args);
		return {value: value === undefined ? null : value};
	}`, fn)

	var raw []byte
	err := s.RunActions(ctx, chromedp.CallFunctionOn(wrapped, &raw,
		func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(el.ObjectID).WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		},
		args...,
	))
	if err != nil {
		// The handle outlived its execution context.
		if el.generation != s.Generation() {
			return ErrStaleElement
		}
		return fmt.Errorf("call on %s: %w", el, err)
	}

	var out callResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode call result: %w (payload: %s)", err, string(raw))
	}
	if out.Stale {
		return ErrStaleElement
	}
	if res == nil || len(out.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(out.Value, res); err != nil {
		return fmt.Errorf("decode call value: %w (payload: %s)", err, string(out.Value))
	}
	return nil
}

const stateScript = `function() {
	const rect = this.getBoundingClientRect();
	const style = window.getComputedStyle(this);
	const displayed = rect.width > 0 && rect.height > 0 &&
		style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	const enabled = !this.disabled && this.getAttribute('aria-disabled') !== 'true';
	const inView = rect.bottom > 0 && rect.right > 0 &&
		rect.top < window.innerHeight && rect.left < window.innerWidth;
	return {
		connected: this.isConnected, displayed: displayed, enabled: enabled, inView: inView,
		tag: this.tagName ? this.tagName.toLowerCase() : '',
		x: rect.left, y: rect.top, width: rect.width, height: rect.height
	};
}`

// State snapshots the element's visibility, enablement and geometry.
func (s *Session) State(ctx context.Context, el Element) (ElementState, error) {
	var st ElementState
	err := s.CallOn(ctx, el, stateScript, &st)
	return st, err
}

// ReleaseHandles drops every element handle the session has created.
func (s *Session) ReleaseHandles(ctx context.Context) error {
	return s.RunActions(ctx, runtime.ReleaseObjectGroup(objectGroup))
}

// JSLiteral encodes v as a JavaScript literal for embedding in a script.
func JSLiteral(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
