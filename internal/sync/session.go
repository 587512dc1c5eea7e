// Package sync orchestrates reconciliation between the local store and the
// per-user remote document: initial merge on session start, push
// subscription for remote-origin changes, offline catch-up, and the
// write-through mutators the UI calls.
package sync

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
	"github.com/shelfsyncapp/shelfsync-server/internal/docstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/localstore"
	"github.com/shelfsyncapp/shelfsync-server/internal/merge"
	"github.com/shelfsyncapp/shelfsync-server/internal/notify"
	"github.com/shelfsyncapp/shelfsync-server/internal/offline"
	"github.com/shelfsyncapp/shelfsync-server/internal/validation"
)

// State is the sync lifecycle state exposed to the UI.
type State string

const (
	// StateIdle means no sync has been attempted this session.
	StateIdle State = "idle"
	// StateInitializing covers remote document ensure/fetch.
	StateInitializing State = "initializing"
	// StateMerging covers the merge and write-back.
	StateMerging State = "merging"
	// StateSynced means local and remote converged and the push
	// subscription is open.
	StateSynced State = "synced"
	// StateOfflinePending means connectivity is lost with local changes
	// awaiting reconciliation.
	StateOfflinePending State = "offline-pending"
	// StateError means a remote call failed; local state stays
	// authoritative.
	StateError State = "error"
)

// Status is the snapshot of session state served by the admin surface.
type Status struct {
	State        State      `json:"state"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	CacheVersion uint64     `json:"cache_version"`
	Online       bool       `json:"online"`
	PendingSync  bool       `json:"pending_sync"`
}

// Session coordinates sync for one authenticated user. Identity and
// collaborators are constructor-injected so tests can run independent
// sessions without shared globals.
type Session struct {
	userID   string
	local    *localstore.Store
	remote   docstore.Client
	caches   *cache.Manager
	notifier notify.Notifier
	logger   *slog.Logger
	validate *validation.Validator
	monitor  *offline.Monitor

	mu              sync.Mutex
	state           State
	syncInProgress  bool
	syncInitialized bool
	lastSyncTime    time.Time
	unsubscribe     docstore.Unsubscribe
	subscribers     []Subscriber

	pushes sync.WaitGroup
}

// NewSession creates a session for the given user identity. An empty userID
// means no usable identity and is rejected up front.
func NewSession(userID string, local *localstore.Store, remote docstore.Client, caches *cache.Manager, notifier notify.Notifier, logger *slog.Logger) (*Session, error) {
	if userID == "" {
		return nil, errors.ErrUnauthenticated
	}

	s := &Session{
		userID:   userID,
		local:    local,
		remote:   remote,
		caches:   caches,
		notifier: notifier,
		logger:   logger,
		validate: validation.New(),
		state:    StateIdle,
	}

	s.monitor = offline.NewMonitor(s.catchUp, notifier, logger)

	// Cache invalidation subscribes to remote changes like any other
	// consumer; the session does not call it directly.
	s.OnRemoteChange(func(ev RemoteSnapshotChanged) {
		caches.OnRemoteSnapshot(ev.UserID, ev.Snapshot)
	})

	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.monitor.Online() && s.monitor.PendingSync() {
		return StateOfflinePending
	}
	return s.state
}

// LastSyncTime returns the completion time of the last successful sync, or
// nil if none has completed.
func (s *Session) LastSyncTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSyncTime.IsZero() {
		return nil
	}
	t := s.lastSyncTime
	return &t
}

// CurrentStatus assembles the admin-surface status.
func (s *Session) CurrentStatus() Status {
	return Status{
		State:        s.State(),
		LastSyncTime: s.LastSyncTime(),
		CacheVersion: s.caches.Version(),
		Online:       s.monitor.Online(),
		PendingSync:  s.monitor.PendingSync(),
	}
}

// Monitor exposes the offline monitor for connectivity signals.
func (s *Session) Monitor() *offline.Monitor { return s.monitor }

// Caches exposes the cache manager for the admin surface.
func (s *Session) Caches() *cache.Manager { return s.caches }

// Start runs the initialization sequence at most once per session:
//
//  1. ensure the remote document exists (idempotent create)
//  2. fetch the remote snapshot
//  3. merge {local, remote}
//  4. apply the merged snapshot locally, all collections at once
//  5. push the merged snapshot back so all devices converge
//  6. open the push subscription
//  7. record the sync time
//
// Concurrent or repeated calls while initialization is running or after it
// has completed are silent no-ops: multiple UI components mounting at once
// must not trigger duplicate document creation or duplicate merge cycles.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.syncInProgress || s.syncInitialized {
		s.mu.Unlock()
		return nil
	}
	s.syncInProgress = true
	s.state = StateInitializing
	s.mu.Unlock()

	err := s.initialize(ctx)

	s.mu.Lock()
	s.syncInProgress = false
	if err != nil {
		s.state = StateError
		s.mu.Unlock()
		s.logger.Warn("sync initialization failed, local data stays authoritative",
			"user_id", s.userID, "error", err)
		notify.Warn(s.notifier, "Sync failed — your data is safe on this device")
		return err
	}
	s.syncInitialized = true
	s.state = StateSynced
	s.lastSyncTime = time.Now()
	s.mu.Unlock()

	s.logger.Info("sync session started", "user_id", s.userID)
	return nil
}

// initialize performs steps 1-6. Local state is only modified after every
// remote call needed for the merge has succeeded; a failed push rolls the
// local store back to its pre-merge contents.
func (s *Session) initialize(ctx context.Context) error {
	local, err := s.local.SnapshotOrInit(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("load local snapshot: %w", err)
	}

	remote, err := s.ensureRemote(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateMerging
	s.mu.Unlock()

	merged := merge.Snapshots(local, remote)

	if err := s.local.Apply(ctx, s.userID, merged); err != nil {
		return fmt.Errorf("apply merged snapshot: %w", err)
	}

	if err := s.pushSnapshot(ctx, merged); err != nil {
		// Roll back so local state is exactly what it was before the
		// attempt; no partial merge survives a failed cycle.
		if rbErr := s.local.Apply(ctx, s.userID, local); rbErr != nil {
			s.logger.Error("rollback after failed push also failed",
				"user_id", s.userID, "error", rbErr)
		}
		return fmt.Errorf("push merged snapshot: %w", err)
	}

	return s.resubscribe(ctx)
}

// ensureRemote guarantees the user's document exists and returns the remote
// snapshot, or nil for a brand-new user (merge then treats the remote side
// as absent). Creation is idempotent: an existing document is never
// overwritten, and losing a create race to another device is fine.
func (s *Session) ensureRemote(ctx context.Context) (*domain.UserSnapshot, error) {
	remote, err := s.remote.Get(ctx, s.userID)
	if err == nil {
		return remote, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("fetch remote document: %w", err)
	}

	if err := s.remote.Create(ctx, s.userID, domain.NewUserSnapshot()); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			// Another device created it first; fetch what it wrote.
			return s.remote.Get(ctx, s.userID)
		}
		return nil, fmt.Errorf("create remote document: %w", err)
	}
	return nil, nil
}

// pushSnapshot writes the full snapshot to the remote document. Pushes fail
// fast without retry: retrying a non-idempotent write risks duplicating a
// concurrent device's update, and the next merge cycle converges anyway.
func (s *Session) pushSnapshot(ctx context.Context, snap *domain.UserSnapshot) error {
	fields, err := snapshotFields(snap)
	if err != nil {
		return err
	}
	return s.remote.UpdateFields(ctx, s.userID, fields)
}

// resubscribe opens the push subscription, closing any prior one first so a
// session never leaks listeners.
func (s *Session) resubscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	unsub, err := s.remote.Subscribe(ctx, s.userID, s.handleRemoteChange, s.handleSubscriptionError)
	if err != nil {
		return fmt.Errorf("open push subscription: %w", err)
	}

	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()
	return nil
}

// handleRemoteChange applies a remote-origin push. The incoming document is
// authoritative — it already reflects a merged state from whichever client
// wrote it — so fields overwrite local state directly with no re-merge.
func (s *Session) handleRemoteChange(snap *domain.UserSnapshot) {
	ctx := context.Background()
	if err := s.local.Apply(ctx, s.userID, snap); err != nil {
		s.logger.Error("failed to apply remote snapshot", "user_id", s.userID, "error", err)
		return
	}

	s.logger.Debug("remote snapshot applied", "user_id", s.userID)
	s.publish(RemoteSnapshotChanged{
		UserID:     s.userID,
		Snapshot:   snap,
		ReceivedAt: time.Now(),
	})
}

// handleSubscriptionError logs and surfaces a transient warning. The UI
// keeps working on local data; nothing is torn down.
func (s *Session) handleSubscriptionError(err error) {
	s.logger.Warn("push subscription error", "user_id", s.userID, "error", err)
	notify.Warn(s.notifier, "Live sync interrupted — retrying in the background")
}

// catchUp is the offline monitor's reconnect hook: one merge-and-push cycle
// (steps 1-5) with the accumulated local state as input.
func (s *Session) catchUp(ctx context.Context) error {
	return s.resync(ctx)
}

// ForceResync runs a full merge-and-push cycle on demand, for debugging and
// administration.
func (s *Session) ForceResync(ctx context.Context) error {
	return s.resync(ctx)
}

// resync re-runs steps 1-5 of the initialization sequence. Guarded by the
// same in-progress flag so cycles never interleave.
func (s *Session) resync(ctx context.Context) error {
	s.mu.Lock()
	if s.syncInProgress {
		s.mu.Unlock()
		return nil
	}
	s.syncInProgress = true
	s.state = StateMerging
	s.mu.Unlock()

	err := s.runCycle(ctx)

	s.mu.Lock()
	s.syncInProgress = false
	if err != nil {
		s.state = StateError
	} else {
		s.state = StateSynced
		s.lastSyncTime = time.Now()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("resync failed", "user_id", s.userID, "error", err)
		return err
	}

	// A completed cycle reconciled everything the pending flag was tracking,
	// whether it was triggered by reconnect or by explicit user action.
	s.monitor.MarkSynced()
	s.logger.Info("resync complete", "user_id", s.userID)
	return nil
}

// runCycle is one merge-and-push pass: ensure, fetch, merge, apply, push.
func (s *Session) runCycle(ctx context.Context) error {
	local, err := s.local.SnapshotOrInit(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("load local snapshot: %w", err)
	}

	remote, err := s.ensureRemote(ctx)
	if err != nil {
		return err
	}

	merged := merge.Snapshots(local, remote)
	if err := s.local.Apply(ctx, s.userID, merged); err != nil {
		return fmt.Errorf("apply merged snapshot: %w", err)
	}
	if err := s.pushSnapshot(ctx, merged); err != nil {
		if rbErr := s.local.Apply(ctx, s.userID, local); rbErr != nil {
			s.logger.Error("rollback after failed push also failed",
				"user_id", s.userID, "error", rbErr)
		}
		return fmt.Errorf("push merged snapshot: %w", err)
	}
	return nil
}

// InvalidateCache is the admin entry point for manual invalidation.
func (s *Session) InvalidateCache(scope cache.Scope) error {
	if !scope.Valid() {
		return errors.Validationf("unknown cache scope %q", string(scope))
	}
	s.caches.Invalidate(scope)
	return nil
}

// Flush blocks until queued asynchronous pushes have completed. Tests and
// shutdown use it; the UI never waits on it.
func (s *Session) Flush() {
	s.pushes.Wait()
}

// Stop closes the push subscription and ends the session. A stopped session
// can be started again (a fresh initialization cycle runs).
func (s *Session) Stop() {
	s.pushes.Wait()

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.syncInitialized = false
	s.state = StateIdle
	s.mu.Unlock()

	s.logger.Info("sync session stopped", "user_id", s.userID)
}

// snapshotFields encodes a snapshot into the top-level field map the
// document store expects for a full push.
func snapshotFields(snap *domain.UserSnapshot) (map[string]any, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return fields, nil
}
