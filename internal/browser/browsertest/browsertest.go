// Package browsertest provides helpers for tests that drive a real Chrome.
// Tests using it are skipped under -short and on machines without Chrome.
package browsertest

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
)

const (
	// cleanupGracePeriod is reserved before the test deadline for closing Chrome.
	cleanupGracePeriod = 5 * time.Second
	defaultTestTimeout = 3 * time.Minute
)

// candidates are tried when CHROME_PATH is unset.
var candidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// ChromePath returns the Chrome binary tests should use, or "" when none is
// installed.
func ChromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range candidates {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// Require skips the calling test when a browser cannot be used.
func Require(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in -short mode")
	}
	path := ChromePath()
	if path == "" {
		t.Skip("no Chrome or Chromium found; set CHROME_PATH to run browser tests")
	}
	return path
}

// Config returns a headless configuration pointed at baseURL with short waits.
func Config(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.App.BaseURL = baseURL
	cfg.Browser.Headless = true
	cfg.Browser.NoSandbox = true
	cfg.Browser.ExecPath = ChromePath()
	cfg.Wait.TimeoutSeconds = 5
	cfg.Wait.PollInterval = 50 * time.Millisecond
	cfg.Artifacts.Dir = t.TempDir()
	return cfg
}

// Context returns a context that ends shortly before the test deadline.
func Context(t *testing.T) context.Context {
	t.Helper()
	deadline, ok := t.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTestTimeout)
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline.Add(-cleanupGracePeriod))
	t.Cleanup(cancel)
	return ctx
}

// NewSession launches a browser for the test and closes it on cleanup.
func NewSession(t *testing.T, cfg *config.Config) *session.Session {
	t.Helper()
	Require(t)

	// Debug output from chromedp can arrive after the test returns.
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	s, err := session.New(Context(t), cfg, logger)
	require.NoError(t, err, "failed to launch Chrome")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupGracePeriod)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}
