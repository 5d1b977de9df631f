package config_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"vivuplanner/internal/config"
	"vivuplanner/internal/infra"
	"vivuplanner/internal/telemetry"
)

var Module = fx.Provide(
	provideConfig, provideLogger, telemetry.NewMetrics)

func provideConfig() (config.Config, error) {
	return config.Load("")
}

func provideLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := infra.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() {
		_ = logger.Sync()
	}))
	return logger, nil
}
