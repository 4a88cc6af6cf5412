// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
)

// ErrSessionClosed is returned by every operation on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

// BrowserStartError reports that Chrome could not be launched or attached.
type BrowserStartError struct {
	Err error
}

func (e *BrowserStartError) Error() string {
	return fmt.Sprintf("failed to start browser: %v", e.Err)
}

func (e *BrowserStartError) Unwrap() error { return e.Err }

// Session owns one Chrome process and its single tab. A scenario acquires a
// session, drives it, and closes it on every exit path; sessions are never
// shared between scenarios.
type Session struct {
	id     string
	cfg    *config.Config
	logger *zap.Logger

	// ctx is the chromedp tab context; every CDP call is derived from it.
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	// generation increments on every main-frame navigation, including
	// history navigations within the document. Element handles stamped with
	// an older generation are stale.
	generation atomic.Uint64
	mainFrame  atomic.Value // cdp.FrameID

	mu         sync.Mutex
	dialogs    []Dialog
	exceptions []string

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ ActionExecutor = (*Session)(nil)

// New launches a fresh browser for one scenario. The parent ctx only supplies
// values; the browser lives until Close is called.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	log := logger.With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), allocatorOptions(cfg.Browser)...)
	sugar := log.Named("cdp").Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	s := &Session{
		id:          id,
		cfg:         cfg,
		logger:      log,
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}
	chromedp.ListenTarget(tabCtx, s.handleEvent)

	// The first Run on a chromedp context starts the browser and binds its
	// lifetime to that context, so it must not carry a timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, &BrowserStartError{Err: err}
	}

	log.Debug("Browser session started.",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Int("width", cfg.Browser.WindowWidth),
		zap.Int("height", cfg.Browser.WindowHeight),
	)
	return s, nil
}

// allocatorOptions translates the browser configuration into Chrome flags.
func allocatorOptions(bc config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", bc.Headless),
		chromedp.WindowSize(bc.WindowWidth, bc.WindowHeight),
		chromedp.DisableGPU,
	)
	if bc.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if bc.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	if bc.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(bc.ExecPath))
	}
	for _, arg := range bc.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

func (s *Session) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			s.mainFrame.Store(e.Frame.ID)
			s.generation.Add(1)
		}
	case *page.EventNavigatedWithinDocument:
		if main, ok := s.mainFrame.Load().(cdp.FrameID); !ok || main == e.FrameID {
			s.generation.Add(1)
		}
	case *page.EventJavascriptDialogOpening:
		s.recordDialog(e)
		// Page.handleJavaScriptDialog blocks until the dialog is handled, and
		// the event loop must stay free, so accept it from a goroutine.
		go func() {
			if err := chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true)); err != nil && s.ctx.Err() == nil {
				s.logger.Debug("Failed to accept JavaScript dialog.", zap.Error(err))
			}
		}()
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		text := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			text = e.ExceptionDetails.Exception.Description
		}
		s.mu.Lock()
		if len(s.exceptions) < maxRecordedExceptions {
			s.exceptions = append(s.exceptions, text)
		}
		s.mu.Unlock()
	}
}

const maxRecordedExceptions = 50

// ID returns the session identifier used in logs and artifact names.
func (s *Session) ID() string { return s.id }

// Config returns the configuration the session was built with.
func (s *Session) Config() *config.Config { return s.cfg }

// Logger returns the session-scoped logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// Generation returns the current document generation.
func (s *Session) Generation() uint64 { return s.generation.Load() }

// Exceptions returns uncaught page exceptions observed so far.
func (s *Session) Exceptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.exceptions...)
}

// RunActions runs chromedp actions bounded by both ctx and the session.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		// Report the cause the caller can act on rather than the derived cancel.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if s.ctx.Err() != nil {
			return ErrSessionClosed
		}
	}
	return err
}

// RunBackgroundActions runs actions that must not be cut short by the
// caller's cancellation, such as capturing a failure screenshot after the
// scenario context has already expired.
func (s *Session) RunBackgroundActions(ctx context.Context, actions ...chromedp.Action) error {
	return s.RunActions(Detach(ctx), actions...)
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(10 * time.Second):
			err = errors.New("timed out closing browser")
		}
		s.tabCancel()
		s.allocCancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("Browser did not close cleanly.", zap.Error(err))
		} else {
			err = nil
		}
		s.logger.Debug("Browser session closed.")
	})
	return err
}
