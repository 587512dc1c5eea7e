// Package di provides dependency injection configuration for the ShelfSync
// daemon.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/di/providers"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideCacheManager)

	// Storage layer
	do.Provide(injector, providers.ProvideLocalStore)
	do.Provide(injector, providers.ProvideDocStore)

	// Sync core
	do.Provide(injector, providers.ProvideSession)
	do.Provide(injector, providers.ProvideCatalog)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and runs the initial sync cycle.
func Bootstrap(ctx context.Context, injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.LocalStoreHandle](injector)

	session, err := do.Invoke[*providers.SessionHandle](injector)
	if err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.CatalogHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Initial sync. A remote failure here is not fatal: the daemon keeps
	// serving local data and the next reconnect or manual resync recovers.
	if err := session.Start(ctx); err != nil {
		log.Warn("Initial sync failed, continuing with local data", "error", err)
	}

	return nil
}
