// internal/browser/session/context_utils.go
package session

import (
	"context"
	"time"
)

// CombineContext returns a context that carries primary's values and is
// cancelled when either primary or secondary is done. chromedp locates the
// tab through context values, so primary must be the tab context and
// secondary the caller's operational context.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext keeps its parent's values but none of its deadline or
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context with ctx's values that is never cancelled by ctx.
// Browser lifetimes and failure screenshots use it so that they outlive the
// scenario context that requested them.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
