// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against a live tab. Implementations
// combine the caller's operational context with the long-lived tab context
// so that actions carry the CDP connection and honor both cancellations.
type ActionExecutor interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error

	// RunBackgroundActions runs actions in a context detached from ctx's
	// cancellation, for cleanup work that must outlive the caller.
	RunBackgroundActions(ctx context.Context, actions ...chromedp.Action) error
}
