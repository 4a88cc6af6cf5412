// -- cmd/login.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/auth"
	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/observability"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check that the configured credentials can log in",
		Long: `Opens the login page in a fresh Chrome, submits TEST_EMAIL and
TEST_PASSWORD and reports where the app landed or which alert it showed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			// Fail before Chrome starts when credentials are missing.
			if err := cfg.Credentials.Require(); err != nil {
				return err
			}

			logger := observability.GetLogger()
			s, err := session.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.Close(ctx); err != nil {
					logger.Warn("Failed to close browser session.", zap.Error(err))
				}
			}()

			creds, err := auth.LoginFromConfig(cmd.Context(), s)
			if err != nil {
				return err
			}
			url, err := s.CurrentURL(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s at %s\n", creds.Email, url)
			return nil
		},
	}
}
