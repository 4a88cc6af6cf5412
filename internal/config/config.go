// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire harness configuration. It is assembled once at
// process start and handed to sessions and scenarios by pointer; nothing in
// the harness reads the process environment after that.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	App         AppConfig         `mapstructure:"app" yaml:"app"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Wait        WaitConfig        `mapstructure:"wait" yaml:"wait"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Data        DataConfig        `mapstructure:"data" yaml:"data"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	Run         RunConfig         `mapstructure:"run" yaml:"run"`
	Report      ReportConfig      `mapstructure:"report" yaml:"report"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AppConfig describes the application under test.
type AppConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// AuthPath is the login surface, relative to BaseURL.
	AuthPath string `mapstructure:"auth_path" yaml:"auth_path"`
	// AuthenticatedPrefix identifies the authenticated area in the location.
	AuthenticatedPrefix string `mapstructure:"authenticated_prefix" yaml:"authenticated_prefix"`
}

// URL joins BaseURL with path.
func (a AppConfig) URL(path string) string {
	base := strings.TrimRight(a.BaseURL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// BrowserConfig holds settings for the Chrome instance each session launches.
type BrowserConfig struct {
	// Headless is resolved from the raw `browser.headless` value by
	// NewConfigFromViper so that the legacy "1"/"true"/"True" spellings keep
	// working.
	Headless        bool          `mapstructure:"-" yaml:"headless"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox       bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	Args            []string      `mapstructure:"args" yaml:"args"`
}

// WaitConfig is the default wait budget shared by every helper.
type WaitConfig struct {
	TimeoutSeconds int           `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// Timeout returns the default wait budget.
func (w WaitConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// CredentialsConfig carries the login identity. Neither field has a default.
type CredentialsConfig struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"-"`
}

// Require reports a ConfigurationError when either credential is missing.
func (c CredentialsConfig) Require() error {
	var missing []string
	if c.Email == "" {
		missing = append(missing, EnvTestEmail)
	}
	if c.Password == "" {
		missing = append(missing, EnvTestPassword)
	}
	if len(missing) == 0 {
		return nil
	}
	return &ConfigurationError{
		Keys:   missing,
		Reason: "set them in your shell env or in a .env/.env.local/e2e/.env file",
	}
}

// DataConfig holds the test data the scenarios search for.
type DataConfig struct {
	SongQuery    string `mapstructure:"song_query" yaml:"song_query"`
	SearchTerm   string `mapstructure:"search_term" yaml:"search_term"`
	FollowTarget string `mapstructure:"follow_target" yaml:"follow_target"`
}

// ArtifactsConfig controls diagnostic output written to disk.
type ArtifactsConfig struct {
	Dir                 string `mapstructure:"dir" yaml:"dir"`
	ScreenshotOnFailure bool   `mapstructure:"screenshot_on_failure" yaml:"screenshot_on_failure"`
}

// RunConfig tunes the scenario runner.
type RunConfig struct {
	Parallelism     int           `mapstructure:"parallelism" yaml:"parallelism"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
}

// ReportConfig selects the report written after a run.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "soundpuff-e2e")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- App --
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("app.auth_path", "/auth")
	v.SetDefault("app.authenticated_prefix", "/app/")

	// -- Browser --
	v.SetDefault("browser.headless", "1")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)
	v.SetDefault("browser.page_load_timeout", "30s")

	// -- Wait --
	v.SetDefault("wait.timeout_seconds", 15)
	v.SetDefault("wait.poll_interval", "250ms")

	// -- Data --
	v.SetDefault("data.song_query", "a")
	v.SetDefault("data.search_term", "Pop")
	v.SetDefault("data.follow_target", "lura")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.screenshot_on_failure", true)

	// -- Run --
	v.SetDefault("run.parallelism", 1)
	v.SetDefault("run.scenario_timeout", "3m")

	// -- Report --
	v.SetDefault("report.format", "")
	v.SetDefault("report.output", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// Callers are expected to have applied SetDefaults, BindEnv and LoadEnvFiles.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("error unmarshaling config: %v", err)}
	}
	cfg.Browser.Headless = ParseFlag(v.GetString("browser.headless"))

	var err error
	if cfg.Artifacts.Dir, err = homedir.Expand(cfg.Artifacts.Dir); err != nil {
		return nil, &ConfigurationError{Keys: []string{"artifacts.dir"}, Reason: err.Error()}
	}
	if cfg.Report.Output, err = homedir.Expand(cfg.Report.Output); err != nil {
		return nil, &ConfigurationError{Keys: []string{"report.output"}, Reason: err.Error()}
	}
	if cfg.Logger.LogFile, err = homedir.Expand(cfg.Logger.LogFile); err != nil {
		return nil, &ConfigurationError{Keys: []string{"logger.log_file"}, Reason: err.Error()}
	}
	return &cfg, nil
}

// ParseFlag accepts the spellings the legacy suite treated as "on".
func ParseFlag(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "1", "true", "True":
		return true
	default:
		return false
	}
}

// Validate checks the configuration for required fields and sane values.
// Credentials are deliberately not checked here: scenarios that never log in
// must still run without them.
func (c *Config) Validate() error {
	if c.App.BaseURL == "" {
		return &ConfigurationError{Keys: []string{EnvBaseURL}, Reason: "base url must not be empty"}
	}
	if !strings.HasPrefix(c.App.BaseURL, "http://") && !strings.HasPrefix(c.App.BaseURL, "https://") {
		return &ConfigurationError{Keys: []string{EnvBaseURL}, Reason: fmt.Sprintf("base url %q must start with http:// or https://", c.App.BaseURL)}
	}
	if c.Wait.TimeoutSeconds <= 0 {
		return &ConfigurationError{Keys: []string{EnvTimeout}, Reason: "wait timeout must be a positive number of seconds"}
	}
	if c.Wait.PollInterval <= 0 {
		return &ConfigurationError{Keys: []string{"wait.poll_interval"}, Reason: "poll interval must be a positive duration"}
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return &ConfigurationError{Keys: []string{"browser.window_width", "browser.window_height"}, Reason: "window size must be positive"}
	}
	if c.Run.Parallelism <= 0 {
		return &ConfigurationError{Keys: []string{"run.parallelism"}, Reason: "parallelism must be a positive integer"}
	}
	switch c.Report.Format {
	case "", "junit", "json":
	default:
		return &ConfigurationError{Keys: []string{"report.format"}, Reason: fmt.Sprintf("unsupported report format %q (supported: junit, json)", c.Report.Format)}
	}
	return nil
}
