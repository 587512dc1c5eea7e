// Package main provides the entry point for the ShelfSync daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/di"
	"github.com/shelfsyncapp/shelfsync-server/internal/di/providers"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(context.Background(), injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap daemon: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down daemon gracefully...")

	// Shutdown all services in reverse order; the DI container handles
	// shutdown order automatically.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// The local store uses a wrapper type, close it explicitly last so every
	// in-flight write has been flushed.
	if storeHandle, err := do.Invoke[*providers.LocalStoreHandle](injector); err == nil {
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("Failed to close local store", "error", err)
		}
	}

	log.Info("Daemon stopped")
}
