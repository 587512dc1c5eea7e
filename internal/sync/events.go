package sync

import (
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

// RemoteSnapshotChanged is published on the session's event bus after a
// remote-origin push has been applied to the local store. The local store
// applier and the cache invalidation manager are independent subscribers;
// neither knows about the other.
type RemoteSnapshotChanged struct {
	UserID     string
	Snapshot   *domain.UserSnapshot
	ReceivedAt time.Time
}

// Subscriber consumes RemoteSnapshotChanged events. Subscribers run on the
// delivery goroutine and must not block.
type Subscriber func(RemoteSnapshotChanged)

// publish delivers the event to all current subscribers in registration
// order.
func (s *Session) publish(event RemoteSnapshotChanged) {
	s.mu.Lock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

// OnRemoteChange registers a subscriber for remote snapshot events.
func (s *Session) OnRemoteChange(fn Subscriber) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}
