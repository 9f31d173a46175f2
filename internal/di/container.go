// Package di provides dependency injection configuration for the media QC server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/mediaqc-server/internal/config"
	"github.com/listenupapp/mediaqc-server/internal/di/providers"
	"github.com/listenupapp/mediaqc-server/internal/logger"
	"github.com/listenupapp/mediaqc-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideSSEManager)

	// Domain
	do.Provide(injector, providers.ProvideGroupingEngine)
	do.Provide(injector, providers.ProvideQCLedger)

	// Business services
	do.Provide(injector, providers.ProvideGroupingService)
	do.Provide(injector, providers.ProvideQCService)
	do.Provide(injector, providers.ProvideMediaLibrary)

	// Workers
	do.Provide(injector, providers.ProvideFileWatcher)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services, runs the startup import and scan,
// and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	_ = do.MustInvoke[*service.GroupingService](injector)
	_ = do.MustInvoke[*service.QCService](injector)

	providers.RunStartupTasks(injector)

	// The watcher starts after the initial scan so it only reports later changes.
	if _, err := do.Invoke[*providers.FileWatcherHandle](injector); err != nil {
		return err
	}

	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
