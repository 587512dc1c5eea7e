// Package docstore defines the client contract for the remote document store
// holding one document per user, and provides two implementations: an
// in-process store for tests and local mode, and a remote adapter speaking
// JSON over HTTP with a WebSocket push channel.
package docstore

import (
	"context"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

// ErrNotFound is returned by Get when no document exists for the key.
var ErrNotFound = errors.NotFound("document not found")

// ErrAlreadyExists is returned by Create when a document already exists.
// Callers doing ensure-exists treat this as success.
var ErrAlreadyExists = errors.AlreadyExists("document already exists")

// Unsubscribe tears down a push subscription. Safe to call more than once.
type Unsubscribe func()

// Client is the consumed capability of the remote document store.
//
// The store guarantees last-write-visible ordering on the push channel; no
// additional ordering is layered on top. Every change event delivers the full
// document, not a diff.
type Client interface {
	// Get returns the document for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*domain.UserSnapshot, error)

	// Create stores the initial document for key. It never overwrites: if a
	// document already exists it returns ErrAlreadyExists and leaves the
	// stored document untouched.
	Create(ctx context.Context, key string, doc *domain.UserSnapshot) error

	// UpdateFields applies a partial update. Top-level fields present in
	// fields replace the stored values; absent fields are unaffected.
	UpdateFields(ctx context.Context, key string, fields map[string]any) error

	// Subscribe opens a push subscription on the document. onChange receives
	// the full document after every remote-side change, in delivery order.
	// onError receives transport errors; the subscription itself stays
	// registered until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, key string, onChange func(*domain.UserSnapshot), onError func(error)) (Unsubscribe, error)
}
