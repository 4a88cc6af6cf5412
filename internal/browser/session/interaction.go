// internal/browser/session/interaction.go
// Page-level operations: loading documents, reading page state, and raw
// input dispatch. Element-level behavior (scrolling into view, fallbacks,
// retries) lives in the interact package and builds on these primitives.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const defaultPageLoadTimeout = 30 * time.Second

func (s *Session) pageLoadTimeout() time.Duration {
	if s.cfg.Browser.PageLoadTimeout > 0 {
		return s.cfg.Browser.PageLoadTimeout
	}
	return defaultPageLoadTimeout
}

// Navigate loads url and waits for the load event. Element handles obtained
// before the call are stale afterwards.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	timeout := s.pageLoadTimeout()
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.RunActions(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, timeout, navCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Reload reloads the current document.
func (s *Session) Reload(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, s.pageLoadTimeout())
	defer cancel()
	if err := s.RunActions(navCtx, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

// CurrentURL returns the document location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.RunActions(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.RunActions(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// PageSource returns the serialized DOM of the current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var src string
	if err := s.Evaluate(ctx, "document.documentElement ? document.documentElement.outerHTML : ''", &src); err != nil {
		return "", err
	}
	return src, nil
}

// PageDocument parses a snapshot of the current DOM for offline inspection.
func (s *Session) PageDocument(ctx context.Context) (*html.Node, error) {
	src, err := s.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse page source: %w", err)
	}
	return doc, nil
}

// ClearCookies removes every cookie in the browser.
func (s *Session) ClearCookies(ctx context.Context) error {
	return s.RunActions(ctx, network.ClearBrowserCookies())
}

// ClearStorage empties localStorage and sessionStorage for the current origin.
func (s *Session) ClearStorage(ctx context.Context) error {
	return s.Evaluate(ctx, `(() => {
		try { window.localStorage.clear(); window.sessionStorage.clear(); } catch (e) {}
		return true;
	})()`, nil)
}

// ClickAt dispatches a native left click at viewport coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	return s.RunActions(ctx, chromedp.MouseClickXY(x, y))
}

// SendKeys types keys into the focused element. Special keys use the
// chromedp/kb constants.
func (s *Session) SendKeys(ctx context.Context, keys string) error {
	return s.RunActions(ctx, chromedp.KeyEvent(keys))
}
