// Package providers contains dependency injection providers for the media QC server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/mediaqc-server/internal/config"
	"github.com/listenupapp/mediaqc-server/internal/logger"
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(_ do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting media QC server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"media_root", cfg.Media.Root,
		"locale", cfg.Media.Locale,
	)

	return log, nil
}

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(_ do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
