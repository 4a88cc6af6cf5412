package session

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
)

// Dialog is a native JavaScript dialog (alert, confirm, prompt) the page
// opened. Every dialog is accepted automatically.
type Dialog struct {
	Type    string
	Message string
	URL     string
	At      time.Time
}

func (s *Session) recordDialog(e *page.EventJavascriptDialogOpening) {
	d := Dialog{Type: string(e.Type), Message: e.Message, URL: e.URL, At: time.Now()}
	s.logger.Debug("JavaScript dialog opened.", zap.String("type", d.Type), zap.String("message", d.Message))

	s.mu.Lock()
	s.dialogs = append(s.dialogs, d)
	s.mu.Unlock()
}

// Dialogs returns every dialog seen so far, oldest first.
func (s *Session) Dialogs() []Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Dialog(nil), s.dialogs...)
}

// WaitDialog waits for a dialog whose message contains substr (any dialog
// when substr is empty) that opened at or after since.
func (s *Session) WaitDialog(ctx context.Context, since time.Time, substr string, timeout time.Duration) (Dialog, error) {
	return wait.Until(ctx, wait.Options{
		Timeout:  timeout,
		Interval: 100 * time.Millisecond,
		Message:  "a JavaScript dialog containing " + quoteOrAny(substr),
	}, func(ctx context.Context) (Dialog, bool, error) {
		for _, d := range s.Dialogs() {
			if d.At.Before(since) {
				continue
			}
			if substr == "" || strings.Contains(strings.ToLower(d.Message), strings.ToLower(substr)) {
				return d, true, nil
			}
		}
		return Dialog{}, false, nil
	})
}

func quoteOrAny(s string) string {
	if s == "" {
		return "any text"
	}
	return `"` + s + `"`
}
