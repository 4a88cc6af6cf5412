// internal/auth/login.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/interact"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/locate"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/wait"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
)

// Element ids and selectors of the login form.
const (
	EmailFieldID    = "login-email"
	PasswordFieldID = "login-password"
	AlertSelector   = "[data-slot='alert'][role='alert']"
)

// Browser is the session surface the login flow drives.
type Browser interface {
	locate.Querier
	interact.Driver
	Config() *config.Config
	Logger() *zap.Logger
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
}

var _ Browser = (*session.Session)(nil)

// Credentials is the identity a login was performed with.
type Credentials struct {
	Email    string
	Password string
}

// FromConfig reads credentials from the configuration.
func FromConfig(cfg *config.Config) (Credentials, error) {
	if err := cfg.Credentials.Require(); err != nil {
		return Credentials{}, err
	}
	return Credentials{Email: cfg.Credentials.Email, Password: cfg.Credentials.Password}, nil
}

// State is a step of the login flow.
type State int

const (
	Anonymous State = iota
	Submitting
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Submitting:
		return "submitting"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// outcome is what the post-submit poll observed.
type outcome struct {
	state State
	alert string
	url   string
}

// LoginFromConfig logs in with the configured credentials. Missing
// credentials fail with a *config.ConfigurationError before the browser is
// touched; accounts are never created.
func LoginFromConfig(ctx context.Context, b Browser) (Credentials, error) {
	creds, err := FromConfig(b.Config())
	if err != nil {
		return Credentials{}, err
	}
	return Login(ctx, b, creds, 0)
}

// Login submits the login form with creds and waits until the app either
// navigates into the authenticated area or shows an error alert. A zero
// timeout uses the configured wait budget for each step.
func Login(ctx context.Context, b Browser, creds Credentials, timeout time.Duration) (Credentials, error) {
	cfg := b.Config()
	if timeout <= 0 {
		timeout = cfg.Wait.Timeout()
	}
	log := b.Logger().Named("auth").With(zap.String("email", creds.Email))
	fail := func(observed, url string, err error) (Credentials, error) {
		log.Warn("Login failed.", zap.Stringer("state", Failed), zap.String("observed", observed))
		return Credentials{}, &AuthenticationError{Email: creds.Email, Observed: observed, URL: url, Err: err}
	}

	log.Debug("Starting login.", zap.Stringer("state", Anonymous))
	authURL := cfg.App.URL(cfg.App.AuthPath)
	if err := b.Navigate(ctx, authURL); err != nil {
		return fail("could not open the login page", authURL, err)
	}

	log.Debug("Submitting credentials.", zap.Stringer("state", Submitting))
	if err := submit(ctx, b, creds, timeout, cfg.Wait.PollInterval, log); err != nil {
		if ctx.Err() != nil {
			return Credentials{}, err
		}
		url, _ := b.CurrentURL(ctx)
		return fail("could not submit the login form", url, err)
	}

	out, err := awaitOutcome(ctx, b, cfg.App.AuthenticatedPrefix, timeout, cfg.Wait.PollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return Credentials{}, err
		}
		url := out.url
		var te *wait.TimeoutError
		if errors.As(err, &te) {
			if last, ok := te.Last.(outcome); ok {
				url = last.url
			}
		}
		return fail(fmt.Sprintf("login did not navigate to %s", cfg.App.AuthenticatedPrefix), url, err)
	}
	if out.state == Failed {
		return fail(out.alert, out.url, nil)
	}

	log.Info("Logged in.", zap.Stringer("state", Authenticated), zap.String("url", out.url))
	return creds, nil
}

func submit(ctx context.Context, b Browser, creds Credentials, timeout, interval time.Duration, log *zap.Logger) error {
	opts := locate.Options{Timeout: timeout, Interval: interval, Visible: true, Logger: log}

	email, err := locate.Locate(ctx, b, opts, locate.ID(EmailFieldID))
	if err != nil {
		return fmt.Errorf("email field: %w", err)
	}
	password, err := locate.Locate(ctx, b, opts, locate.ID(PasswordFieldID))
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}

	if err := interact.Fill(ctx, b, email, creds.Email, timeout); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := interact.Fill(ctx, b, password, creds.Password, timeout); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	// The page also has tab buttons, so the submit button is looked up
	// inside the form that owns the email field.
	scoped := opts
	scoped.Visible = false
	scoped.Scope = &email
	form, err := locate.Locate(ctx, b, scoped, locate.XPath("ancestor::form[1]"))
	if err != nil {
		return fmt.Errorf("login form: %w", err)
	}
	scoped.Scope = &form
	button, err := locate.Locate(ctx, b, scoped, locate.XPath(".//button[@type='submit']"))
	if err != nil {
		return fmt.Errorf("submit button: %w", err)
	}

	if err := interact.WaitEnabled(ctx, b, button, timeout); err != nil {
		return fmt.Errorf("submit button never enabled: %w", err)
	}
	return interact.Click(ctx, b, button, timeout)
}

// awaitOutcome polls for whichever happens first: the location entering the
// authenticated area or an error alert being rendered.
func awaitOutcome(ctx context.Context, b Browser, prefix string, timeout, interval time.Duration) (outcome, error) {
	alert := locate.CSS(AlertSelector)
	return wait.Until(ctx, wait.Options{Timeout: timeout, Interval: interval, Message: "login outcome"},
		func(ctx context.Context) (outcome, bool, error) {
			url, err := b.CurrentURL(ctx)
			if err != nil {
				return outcome{}, false, err
			}
			if strings.Contains(url, prefix) {
				return outcome{state: Authenticated, url: url}, true, nil
			}

			res, err := locate.Find(ctx, b, locate.Options{}, alert)
			if err != nil || !res.Found {
				return outcome{state: Submitting, url: url}, false, err
			}
			text, err := interact.Text(ctx, b, res.First())
			if err != nil {
				// The alert may have re-rendered between lookup and read.
				return outcome{state: Submitting, url: url}, false, err
			}
			if text == "" {
				text = fmt.Sprintf("login did not navigate to %s", prefix)
			}
			return outcome{state: Failed, alert: text, url: url}, true, nil
		})
}
