// Package soundpuff holds page helpers for the SoundPuff UI. Each helper
// composes the locator, the interaction executor and the poller into one
// user-level step (open the library, create a playlist, like a comment) and
// encodes the markup the app renders for it.
package soundpuff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/auth"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
)

// Routes of the app, relative to the base URL.
const (
	PathHome           = "/app/home"
	PathLibrary        = "/app/library"
	PathCreatePlaylist = "/app/create-playlist"
	PathSearch         = "/app/search"
	PathPlaylistPrefix = "/app/playlist/"
)

// App drives the SoundPuff UI through one browser session.
type App struct {
	s       *session.Session
	cfg     *config.Config
	log     *zap.Logger
	timeout time.Duration

	// PickerWait bounds how long the create page is given to render song
	// checkboxes before falling back to searching for songs.
	PickerWait time.Duration
}

// New wraps s. Waits default to the configured timeout.
func New(s *session.Session) *App {
	cfg := s.Config()
	timeout := cfg.Wait.Timeout()
	return &App{
		s:          s,
		cfg:        cfg,
		log:        s.Logger().Named("soundpuff"),
		timeout:    timeout,
		PickerWait: min(timeout, 5*time.Second),
	}
}

// Session returns the underlying browser session.
func (a *App) Session() *session.Session { return a.s }

// Timeout is the default budget of every wait.
func (a *App) Timeout() time.Duration { return a.timeout }

// Login logs in with the configured credentials.
func (a *App) Login(ctx context.Context) (auth.Credentials, error) {
	return auth.LoginFromConfig(ctx, a.s)
}

// Open navigates to path under the base URL. Handles to elements of the
// page being left are released first.
func (a *App) Open(ctx context.Context, path string) error {
	if err := a.s.ReleaseHandles(ctx); err != nil {
		a.log.Debug("Could not release element handles.", zap.Error(err))
	}
	return a.s.Navigate(ctx, a.cfg.App.URL(path))
}

var (
	navBar       = locate.CSS("nav")
	navButton    = locate.CSS("button")
	navImage     = locate.CSS("img")
	anyLink      = locate.XPath("//a[@href]")
	anyClickable = locate.XPath("//button | //a | //img")
)

// NavTarget returns the first clickable element of the navigation bar: a
// button inside <nav>, else an image inside it. Pages without a usable nav
// fall back to the first link, then to any button, link or image.
func (a *App) NavTarget(ctx context.Context) (session.Element, error) {
	nav, err := a.Locate(ctx, navBar)
	switch {
	case err == nil:
		res, err := locate.Find(ctx, a.s, a.within(nav, 0), navButton, navImage)
		if err != nil {
			return session.Element{}, err
		}
		if res.Found {
			return res.First(), nil
		}
		a.log.Debug("Navigation bar has no button or image; falling back to links.")
	case !wait.IsTimeout(err):
		return session.Element{}, err
	}
	return locate.Locate(ctx, a.s, a.opts(a.PickerWait), anyLink, anyClickable)
}

func (a *App) opts(timeout time.Duration) locate.Options {
	return locate.Options{Timeout: timeout, Interval: a.cfg.Wait.PollInterval, Logger: a.log}
}

func (a *App) visible(timeout time.Duration) locate.Options {
	o := a.opts(timeout)
	o.Visible = true
	return o
}

func (a *App) within(scope session.Element, timeout time.Duration) locate.Options {
	o := a.opts(timeout)
	o.Scope = &scope
	return o
}

// Locate waits for the first match of the strategies.
func (a *App) Locate(ctx context.Context, primary locate.Strategy, fallbacks ...locate.Strategy) (session.Element, error) {
	return locate.Locate(ctx, a.s, a.opts(a.timeout), primary, fallbacks...)
}

// LocateVisible is Locate restricted to rendered elements.
func (a *App) LocateVisible(ctx context.Context, primary locate.Strategy, fallbacks ...locate.Strategy) (session.Element, error) {
	return locate.Locate(ctx, a.s, a.visible(a.timeout), primary, fallbacks...)
}

// Click locates an element and clicks it with the forced-click fallback.
func (a *App) Click(ctx context.Context, primary locate.Strategy, fallbacks ...locate.Strategy) error {
	el, err := a.LocateVisible(ctx, primary, fallbacks...)
	if err != nil {
		return err
	}
	return interact.Click(ctx, a.s, el, a.timeout)
}

// Text returns the trimmed text of the first match.
func (a *App) Text(ctx context.Context, primary locate.Strategy, fallbacks ...locate.Strategy) (string, error) {
	el, err := a.Locate(ctx, primary, fallbacks...)
	if err != nil {
		return "", err
	}
	return interact.Text(ctx, a.s, el)
}

// WaitURLContains waits until the current location contains substr and
// returns it.
func (a *App) WaitURLContains(ctx context.Context, substr string, timeout time.Duration) (string, error) {
	return wait.Until(ctx, wait.Options{Timeout: timeout, Interval: a.cfg.Wait.PollInterval, Message: fmt.Sprintf("url to contain %q", substr)},
		func(ctx context.Context) (string, bool, error) {
			url, err := a.s.CurrentURL(ctx)
			return url, err == nil && strings.Contains(url, substr), err
		})
}

// WaitURLChange waits until the current location differs from from.
func (a *App) WaitURLChange(ctx context.Context, from string, timeout time.Duration) (string, error) {
	return wait.Until(ctx, wait.Options{Timeout: timeout, Interval: a.cfg.Wait.PollInterval, Message: "url to change from " + from},
		func(ctx context.Context) (string, bool, error) {
			url, err := a.s.CurrentURL(ctx)
			return url, err == nil && url != from, err
		})
}

// Screenshot saves a screenshot under the artifacts directory. Failures are
// logged and reported as an empty path; screenshots are diagnostics only.
func (a *App) Screenshot(ctx context.Context, label string) string {
	path, err := a.s.SaveScreenshot(ctx, a.cfg.Artifacts.Dir, label)
	if err != nil {
		a.log.Warn("Could not save screenshot.", zap.String("label", label), zap.Error(err))
		return ""
	}
	a.log.Info("Saved screenshot.", zap.String("path", path))
	return path
}

// SavePageSource saves the current DOM under the artifacts directory, with
// the same failure handling as Screenshot.
func (a *App) SavePageSource(ctx context.Context, label string) string {
	path, err := a.s.SavePageSource(ctx, a.cfg.Artifacts.Dir, label)
	if err != nil {
		a.log.Warn("Could not save page source.", zap.String("label", label), zap.Error(err))
		return ""
	}
	return path
}

// PageErrors returns the uncaught JavaScript exceptions the app threw.
func (a *App) PageErrors() []string { return a.s.Exceptions() }

// ClearSession drops cookies and web storage so the browser is a guest.
func (a *App) ClearSession(ctx context.Context) error {
	if err := a.s.ClearCookies(ctx); err != nil {
		return err
	}
	// Storage is per origin, so an app page has to be loaded first.
	url, err := a.s.CurrentURL(ctx)
	if err != nil || !strings.HasPrefix(url, strings.TrimRight(a.cfg.App.BaseURL, "/")) {
		if err := a.Open(ctx, "/"); err != nil {
			return err
		}
	}
	return a.s.ClearStorage(ctx)
}
