package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
	"github.com/shelfsyncapp/shelfsync-server/internal/catalog"
	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/docstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/notify"
	"github.com/shelfsyncapp/shelfsync-server/internal/sync"
)

// SessionHandle wraps the sync session with shutdown capability.
type SessionHandle struct {
	*sync.Session
}

// Shutdown implements do.Shutdownable.
func (h *SessionHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideSession provides the per-user sync session. A missing user identity
// is a blocking condition: the daemon cannot sync for nobody.
func ProvideSession(i do.Injector) (*SessionHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	local := do.MustInvoke[*LocalStoreHandle](i)
	remote := do.MustInvoke[docstore.Client](i)
	caches := do.MustInvoke[*cache.Manager](i)
	notifier := do.MustInvoke[notify.Notifier](i)

	session, err := sync.NewSession(cfg.User.ID, local.Store, remote, caches, notifier, log.Logger)
	if err != nil {
		notify.Blocking(notifier, "No user identity configured — set USER_ID or --user-id")
		return nil, err
	}

	return &SessionHandle{Session: session}, nil
}

// CatalogHandle wraps the catalog client with shutdown capability.
type CatalogHandle struct {
	*catalog.Cached
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	h.Cached.Close()
	return nil
}

// ProvideCatalog provides the rate-limited, cached catalog client.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	caches := do.MustInvoke[*cache.Manager](i)

	client := catalog.NewClient(cfg.Catalog, log.Logger)
	cached := catalog.NewCached(client, caches, cfg.Cache.CatalogTTL, cfg.Cache.ListTTL)

	return &CatalogHandle{Cached: cached}, nil
}
