// Package offline observes connectivity transitions and drives catch-up
// syncs on reconnect. Writes are never blocked while offline; they keep
// landing in the local store and are reconciled when the link returns.
package offline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shelfsyncapp/shelfsync-server/internal/notify"
)

// CatchUpFunc runs the orchestrator's merge-and-push cycle with the current
// local state as input. It must be safe to call repeatedly.
type CatchUpFunc func(ctx context.Context) error

// Monitor tracks online/offline state and the pending-sync flag.
type Monitor struct {
	logger   *slog.Logger
	notifier notify.Notifier
	catchUp  CatchUpFunc

	mu          sync.Mutex
	online      bool
	pendingSync bool
}

// NewMonitor creates a monitor that starts in the online state.
func NewMonitor(catchUp CatchUpFunc, notifier notify.Notifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		logger:   logger,
		notifier: notifier,
		catchUp:  catchUp,
		online:   true,
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// PendingSync reports whether offline-made changes await reconciliation.
func (m *Monitor) PendingSync() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingSync
}

// SetOnline signals a connectivity transition. Going offline flags pending
// sync and notifies the user once. Going online with pending changes runs
// exactly one catch-up sync; on failure pendingSync stays set so the next
// reconnect (or explicit user action) retries.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online

	if !online {
		m.pendingSync = true
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Info("connection lost, entering offline mode")
		}
		notify.Warn(m.notifier, "You're offline — changes will sync when reconnected")
		return
	}

	pending := m.pendingSync
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("connection restored", "pending_sync", pending)
	}
	if !pending {
		return
	}

	if err := m.catchUp(ctx); err != nil {
		if m.logger != nil {
			m.logger.Warn("catch-up sync failed, will retry on next reconnect", "error", err)
		}
		notify.Warn(m.notifier, "Sync failed — will retry")
		return
	}

	m.mu.Lock()
	m.pendingSync = false
	m.mu.Unlock()
	notify.Info(m.notifier, "You're back online — changes synced")
}

// MarkSynced records that a full merge-and-push cycle reconciled local
// state, clearing pendingSync. The orchestrator calls it after any
// successful cycle, so an explicit user-driven resync counts as the retry
// a failed catch-up is waiting for.
func (m *Monitor) MarkSynced() {
	m.mu.Lock()
	m.pendingSync = false
	m.mu.Unlock()
}
