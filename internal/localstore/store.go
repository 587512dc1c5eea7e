// Package localstore is the durable working copy of user state. It wraps a
// Badger database holding one JSON-encoded UserSnapshot per user.
//
// All mutation goes through Apply or Mutate so a snapshot is always written
// as a single unit (never a partially-updated set of collections) and change
// listeners fire consistently.
package localstore

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

const snapshotPrefix = "snapshot:"

// ErrSnapshotNotFound is returned when no local snapshot exists for a user.
var ErrSnapshotNotFound = apperrors.NotFound("local snapshot not found")

// ChangeListener observes every committed snapshot change. Listeners receive
// a private clone and run on the mutating goroutine.
type ChangeListener func(userID string, snap *domain.UserSnapshot)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[int]ChangeListener
	nextID    int
}

// Open opens (creating if needed) the local store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Local state must survive crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("local store opened", "path", path)
	}

	return &Store{
		db:        db,
		logger:    logger,
		listeners: make(map[int]ChangeListener),
	}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing local store")
	}
	return s.db.Close()
}

// OnChange registers a listener for committed snapshot changes and returns a
// function that removes it.
func (s *Store) OnChange(fn ChangeListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a clone of the user's snapshot, or ErrSnapshotNotFound.
func (s *Store) Snapshot(ctx context.Context, userID string) (*domain.UserSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(snapshotPrefix + userID)
	var snap domain.UserSnapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return nil, err
	}

	snap.Normalize()
	return &snap, nil
}

// SnapshotOrInit returns the user's snapshot, creating and persisting empty
// defaults the first time a user shows up.
func (s *Store) SnapshotOrInit(ctx context.Context, userID string) (*domain.UserSnapshot, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrSnapshotNotFound) {
		return nil, err
	}

	snap = domain.NewUserSnapshot()
	if err := s.Apply(ctx, userID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Apply persists the full snapshot as one write and notifies listeners.
// Corrupt stored data never blocks an Apply: the new snapshot simply
// replaces whatever was there.
func (s *Store) Apply(ctx context.Context, userID string, snap *domain.UserSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap.Normalize()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := []byte(snapshotPrefix + userID)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return err
	}

	s.notify(userID, snap)
	return nil
}

// mutateRetries bounds how often a conflicted mutation is re-run. Conflicts
// come from a concurrent Apply or Mutate committing the same key between
// this transaction's read and its commit.
const mutateRetries = 10

// Mutate runs fn against the current snapshot (empty defaults if none) and
// persists the result as one write. The snapshot UpdatedAt is refreshed on
// every successful mutation. Returns a clone of the committed snapshot.
//
// Badger detects read-write conflicts at commit; a conflicted transaction is
// retried against the freshly committed snapshot, so fn may run more than
// once and must be a pure function of the snapshot it is handed.
func (s *Store) Mutate(ctx context.Context, userID string, fn func(*domain.UserSnapshot) error) (*domain.UserSnapshot, error) {
	for attempt := 0; ; attempt++ {
		snap, err := s.mutateOnce(ctx, userID, fn)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return nil, err
		}
		if attempt >= mutateRetries {
			return nil, apperrors.Conflict("local snapshot write conflict").WithCause(err)
		}
		if s.logger != nil {
			s.logger.Debug("retrying conflicted snapshot mutation", "user_id", userID, "attempt", attempt+1)
		}
	}
}

// mutateOnce is a single read-modify-write transaction attempt.
func (s *Store) mutateOnce(ctx context.Context, userID string, fn func(*domain.UserSnapshot) error) (*domain.UserSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(snapshotPrefix + userID)
	var committed *domain.UserSnapshot

	err := s.db.Update(func(txn *badger.Txn) error {
		snap := domain.NewUserSnapshot()

		item, err := txn.Get(key)
		if err == nil {
			err = item.Value(func(val []byte) error {
				if uerr := json.Unmarshal(val, snap); uerr != nil {
					// Corrupt local data is treated as absent, not fatal.
					if s.logger != nil {
						s.logger.Warn("discarding corrupt local snapshot", "user_id", userID, "error", uerr)
					}
					*snap = *domain.NewUserSnapshot()
				}
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		snap.Normalize()
		if err := fn(snap); err != nil {
			return err
		}
		snap.UpdatedAt = domain.Now()

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		committed = snap
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}

	s.notify(userID, committed)
	return committed.Clone(), nil
}

// notify hands a private clone to every listener.
func (s *Store) notify(userID string, snap *domain.UserSnapshot) {
	s.mu.RLock()
	listeners := make([]ChangeListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(userID, snap.Clone())
	}
}
