package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/soundpuff-e2e/internal/browser/session"
	"github.com/xkilldash9x/soundpuff-e2e/internal/config"
)

// noBrowser lets the runner execute scenarios without Chrome.
func noBrowser(context.Context, *config.Config, *zap.Logger) (*session.Session, error) {
	return nil, nil
}
