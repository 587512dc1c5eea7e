package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/docstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/localstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
)

// LocalStoreHandle wraps the local store with shutdown capability.
type LocalStoreHandle struct {
	*localstore.Store
}

// Shutdown implements do.Shutdownable.
func (h *LocalStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideLocalStore provides the durable local snapshot store.
func ProvideLocalStore(i do.Injector) (*LocalStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	store, err := localstore.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	return &LocalStoreHandle{Store: store}, nil
}

// ProvideDocStore provides the remote document store client. With no remote
// endpoint configured the daemon runs in local mode against an in-process
// store.
func ProvideDocStore(i do.Injector) (docstore.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Remote.Endpoint == "" {
		log.Info("No remote endpoint configured, running in local mode")
		return docstore.NewMemory(log.Logger), nil
	}

	log.Info("Using remote document store", "endpoint", cfg.Remote.Endpoint)
	return docstore.NewRemote(cfg.Remote.Endpoint, cfg.Remote.APIKey, log.Logger), nil
}
