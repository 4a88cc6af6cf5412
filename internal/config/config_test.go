// File: internal/config/config_test.go
package config

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "http://localhost:3000", cfg.App.BaseURL)
	assert.Equal(t, "/auth", cfg.App.AuthPath)
	assert.Equal(t, "/app/", cfg.App.AuthenticatedPrefix)
	assert.True(t, cfg.Browser.Headless, "headless is on unless HEADLESS says otherwise")
	assert.Equal(t, 1280, cfg.Browser.WindowWidth)
	assert.Equal(t, 800, cfg.Browser.WindowHeight)
	assert.Equal(t, 30*time.Second, cfg.Browser.PageLoadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Wait.Timeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Wait.PollInterval)
	assert.Equal(t, "a", cfg.Data.SongQuery)
	assert.Empty(t, cfg.Credentials.Email)
	assert.Empty(t, cfg.Credentials.Password)
	assert.Equal(t, 1, cfg.Run.Parallelism)
	assert.NoError(t, cfg.Validate())
}

func TestAppConfigURL(t *testing.T) {
	app := AppConfig{BaseURL: "http://localhost:3000/"}
	assert.Equal(t, "http://localhost:3000/auth", app.URL("/auth"))
	assert.Equal(t, "http://localhost:3000/app/library", app.URL("app/library"))
	assert.Equal(t, "http://localhost:3000", app.URL(""))
}

func TestParseFlag(t *testing.T) {
	for _, on := range []string{"1", "true", "True", " 1 "} {
		assert.True(t, ParseFlag(on), on)
	}
	for _, off := range []string{"", "0", "false", "no", "yes", "TRUE", "on"} {
		assert.False(t, ParseFlag(off), off)
	}
}

// -- Loading Tests --

func TestNewConfigFromViper_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://staging.soundpuff.test")
	t.Setenv(EnvHeadless, "0")
	t.Setenv(EnvTestEmail, "qa@soundpuff.test")
	t.Setenv(EnvTestPassword, "hunter2")
	t.Setenv(EnvTimeout, "42")
	t.Setenv(EnvSongQuery, "lofi")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://staging.soundpuff.test", cfg.App.BaseURL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "qa@soundpuff.test", cfg.Credentials.Email)
	assert.Equal(t, "hunter2", cfg.Credentials.Password)
	assert.Equal(t, 42*time.Second, cfg.Wait.Timeout())
	assert.Equal(t, "lofi", cfg.Data.SongQuery)
}

func TestNewConfigFromViper_YAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	yamlConfig := []byte(`
app:
  base_url: "http://127.0.0.1:5173"
browser:
  headless: false
  no_sandbox: true
wait:
  timeout_seconds: 5
report:
  format: junit
  output: out/report.xml
`)
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5173", cfg.App.BaseURL)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.Equal(t, 5*time.Second, cfg.Wait.Timeout())
	assert.Equal(t, "junit", cfg.Report.Format)
	assert.Equal(t, "out/report.xml", cfg.Report.Output)
}

func TestNewConfigFromViper_BadTimeout(t *testing.T) {
	t.Setenv(EnvTimeout, "soon")

	_, err := Load(viper.New())
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T", err)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	valid := NewDefaultConfig()
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.App.BaseURL = "" }, "base url must not be empty"},
		{"no scheme", func(c *Config) { c.App.BaseURL = "localhost:3000" }, "must start with http:// or https://"},
		{"zero timeout", func(c *Config) { c.Wait.TimeoutSeconds = 0 }, "wait timeout must be a positive number of seconds"},
		{"zero interval", func(c *Config) { c.Wait.PollInterval = 0 }, "poll interval must be a positive duration"},
		{"window", func(c *Config) { c.Browser.WindowWidth = -1 }, "window size must be positive"},
		{"parallelism", func(c *Config) { c.Run.Parallelism = 0 }, "parallelism must be a positive integer"},
		{"report format", func(c *Config) { c.Report.Format = "sarif" }, `unsupported report format "sarif"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCredentialsRequire(t *testing.T) {
	assert.NoError(t, CredentialsConfig{Email: "a@b.c", Password: "x"}.Require())

	err := CredentialsConfig{Email: "a@b.c"}.Require()
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{EnvTestPassword}, cfgErr.Keys)

	err = CredentialsConfig{}.Require()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{EnvTestEmail, EnvTestPassword}, cfgErr.Keys)
	assert.Contains(t, err.Error(), "TEST_EMAIL/TEST_PASSWORD")
}
