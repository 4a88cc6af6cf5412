// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
	"github.com/xkilldash9x/soundpuff-e2e/internal/observability"
)

type contextKey struct{}

// configKey stores the loaded *config.Config in the command context.
var configKey = contextKey{}

// flagKeys maps flags to the configuration keys they override. A flag is
// bound only on the commands that define it.
var flagKeys = map[string]string{
	"base-url":      "app.base_url",
	"headless":      "browser.headless",
	"no-sandbox":    "browser.no_sandbox",
	"chrome":        "browser.exec_path",
	"timeout":       "wait.timeout_seconds",
	"log-level":     "logger.level",
	"artifacts":     "artifacts.dir",
	"parallel":      "run.parallelism",
	"report-format": "report.format",
	"report-output": "report.output",
}

// NewRootCommand builds a fresh command tree. Each call returns an
// independent tree, so tests can execute commands in isolation.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	var envDir string

	root := &cobra.Command{
		Use:   "soundpuff-e2e",
		Short: "Browser end-to-end checks for the SoundPuff web app.",
		Long: `soundpuff-e2e drives a real Chrome through the SoundPuff UI: login,
playlists, likes, comments, the player, search and follows.

Configuration comes from flags, a YAML config file, the environment
(BASE_URL, HEADLESS, TEST_EMAIL, TEST_PASSWORD, TEST_SONG_QUERY,
SELENIUM_TIMEOUT) and the env files .env, .env.local and e2e/.env.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, config.DefaultEnvFiles(envDir)...)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "soundpuff-e2e"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting soundpuff-e2e", zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./soundpuff-e2e.yaml when present)")
	root.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory holding .env, .env.local and e2e/.env")
	root.PersistentFlags().String("base-url", "", "base URL of the app under test (BASE_URL)")
	root.PersistentFlags().String("headless", "", "run Chrome headless: 1/true/True (HEADLESS)")
	root.PersistentFlags().Bool("no-sandbox", false, "disable the Chrome sandbox (containers)")
	root.PersistentFlags().String("chrome", "", "path to the Chrome binary")
	root.PersistentFlags().Int("timeout", 0, "default wait in seconds (SELENIUM_TIMEOUT)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// initializeConfig reads the optional config file and binds the flags of
// the executing command to their configuration keys.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("soundpuff-e2e")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// configFrom returns the configuration PersistentPreRunE stored.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute runs the root command with ctx, which main makes signal-aware.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}
