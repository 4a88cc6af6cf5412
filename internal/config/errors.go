package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a required configuration value that is absent or
// invalid. It is fatal: callers surface it immediately and never retry.
type ConfigurationError struct {
	Keys   []string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if len(e.Keys) == 0 {
		return "configuration error: " + e.Reason
	}
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: missing %s", strings.Join(e.Keys, "/"))
	}
	return fmt.Sprintf("configuration error: %s: %s", strings.Join(e.Keys, "/"), e.Reason)
}
