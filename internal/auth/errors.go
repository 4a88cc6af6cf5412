package auth

import "fmt"

// AuthenticationError reports a login that did not reach the authenticated
// area. Observed is the alert text shown by the app, or a description of
// what happened instead.
type AuthenticationError struct {
	Email    string
	Observed string
	URL      string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("login failed for %s: %s", e.Email, e.Observed)
	if e.URL != "" {
		msg += fmt.Sprintf(" (at %s)", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
