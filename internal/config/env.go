// File: internal/config/env.go
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable names understood by the harness. They predate the
// structured configuration and are kept for compatibility with existing CI
// jobs and env files.
const (
	EnvBaseURL      = "BASE_URL"
	EnvHeadless     = "HEADLESS"
	EnvTestEmail    = "TEST_EMAIL"
	EnvTestPassword = "TEST_PASSWORD"
	EnvSongQuery    = "TEST_SONG_QUERY"
	EnvTimeout      = "SELENIUM_TIMEOUT"
)

// envBindings maps each legacy environment name to its configuration key.
var envBindings = map[string]string{
	EnvBaseURL:      "app.base_url",
	EnvHeadless:     "browser.headless",
	EnvTestEmail:    "credentials.email",
	EnvTestPassword: "credentials.password",
	EnvSongQuery:    "data.song_query",
	EnvTimeout:      "wait.timeout_seconds",
}

// DefaultEnvFiles lists the env files consulted at start-up, in priority order.
func DefaultEnvFiles(dir string) []string {
	return []string{
		filepath.Join(dir, ".env"),
		filepath.Join(dir, ".env.local"),
		filepath.Join(dir, "e2e", ".env"),
		filepath.Join(dir, "selenium_tests", ".env"),
	}
}

// BindEnv binds the legacy environment names to their configuration keys.
func BindEnv(v *viper.Viper) error {
	for env, key := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnvFiles reads KEY=VALUE files and uses their values for keys that the
// process environment does not already provide. Earlier files win over later
// ones. Missing or malformed files are skipped without error, matching how
// developers drop optional credential files next to the suite.
//
// Values are recorded as viper defaults, so SetDefaults must run first and
// explicit flags and environment variables keep precedence. The process
// environment itself is never modified.
//
// It returns the environment names that were filled from a file.
func LoadEnvFiles(v *viper.Viper, paths ...string) []string {
	var applied []string
	seen := make(map[string]bool)

	for _, path := range paths {
		values, ok := readEnvFile(path)
		if !ok {
			continue
		}
		for name, value := range values {
			env := strings.ToUpper(name)
			key, known := envBindings[env]
			if !known || seen[env] {
				continue
			}
			if _, set := os.LookupEnv(env); set {
				continue
			}
			seen[env] = true
			v.SetDefault(key, value)
			applied = append(applied, env)
		}
	}
	return applied
}

// readEnvFile parses a dotenv file with viper's env codec. Any failure
// (including a missing file) reports ok=false.
func readEnvFile(path string) (map[string]string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	fv := viper.New()
	fv.SetConfigType("env")
	if err := fv.ReadConfig(f); err != nil {
		return nil, false
	}

	values := make(map[string]string, len(fv.AllKeys()))
	for _, k := range fv.AllKeys() {
		values[k] = strings.Trim(fv.GetString(k), `"'`)
	}
	return values, true
}

// Load assembles the configuration in the order the precedence rules need:
// defaults, environment bindings, env files, then decoding and validation.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	LoadEnvFiles(v, envFiles...)
	return NewConfigFromViper(v)
}
