package app

import (
	"context"

	"go.uber.org/zap"

	"gqlmcpd/internal/infra/catalog"
)

// ValidateConfig validates the configuration at the provided path.
func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	loader := catalog.NewLoader(a.logger)
	cat, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}

	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.Int("endpoints", len(cat.Endpoints)),
	)
	return nil
}
