// Package providers contains dependency injection providers for the
// ShelfSync daemon.
package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/notify"
)

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown.
	shutdownTimeout = 30 * time.Second
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
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

	log.Info("Starting ShelfSync daemon",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"remote_mode", cfg.Remote.Endpoint != "",
	)

	return log, nil
}

// ProvideNotifier provides the user notification sink. The daemon has no UI
// attached, so notifications land in the structured log.
func ProvideNotifier(i do.Injector) (notify.Notifier, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &notify.Log{Logger: log.Logger}, nil
}

// ProvideCacheManager provides the cache invalidation manager.
func ProvideCacheManager(i do.Injector) (*cache.Manager, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return cache.NewManager(log.Logger), nil
}
