package docstore

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

// subscriberBuffer bounds how many undelivered change events a slow
// subscriber may accumulate before events are dropped.
const subscriberBuffer = 64

// Memory is an in-process document store. It backs local mode and tests.
// Documents are held as decoded JSON field maps so UpdateFields has real
// partial-update semantics, the same as the remote store.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[string]any
	subs   map[string][]*memSubscriber
	logger *slog.Logger
}

type memSubscriber struct {
	events chan *domain.UserSnapshot
	done   chan struct{}
	once   sync.Once
}

func (s *memSubscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// NewMemory creates an empty in-process store.
func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		docs:   make(map[string]map[string]any),
		subs:   make(map[string][]*memSubscriber),
		logger: logger,
	}
}

// Get implements Client.
func (m *Memory) Get(ctx context.Context, key string) (*domain.UserSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	fields, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return fieldsToSnapshot(fields)
}

// Create implements Client. It never overwrites an existing document.
func (m *Memory) Create(ctx context.Context, key string, doc *domain.UserSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields, err := snapshotToFields(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.docs[key]; exists {
		m.mu.Unlock()
		return ErrAlreadyExists
	}
	m.docs[key] = fields
	m.mu.Unlock()

	m.publish(key)
	return nil
}

// UpdateFields implements Client. Fields not present in the update keep
// their stored values.
func (m *Memory) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Round-trip through JSON so stored values have the same shape whether
	// they arrived via Create or UpdateFields.
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return fmt.Errorf("unmarshal fields: %w", err)
	}

	m.mu.Lock()
	doc, ok := m.docs[key]
	if !ok {
		doc = make(map[string]any)
		m.docs[key] = doc
	}
	for k, v := range normalized {
		doc[k] = v
	}
	m.mu.Unlock()

	m.publish(key)
	return nil
}

// Subscribe implements Client. Change events are fanned out to per-subscriber
// buffered channels; a subscriber that falls more than subscriberBuffer
// events behind loses the oldest notifications (each event carries the full
// document, so the next delivery catches it up).
func (m *Memory) Subscribe(ctx context.Context, key string, onChange func(*domain.UserSnapshot), onError func(error)) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memSubscriber{
		events: make(chan *domain.UserSnapshot, subscriberBuffer),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[key] = append(m.subs[key], sub)
	m.mu.Unlock()

	go func() {
		for {
			select {
			case snap := <-sub.events:
				onChange(snap)
			case <-sub.done:
				return
			case <-ctx.Done():
				if onError != nil {
					onError(ctx.Err())
				}
				return
			}
		}
	}()

	return func() {
		sub.close()
		m.mu.Lock()
		subs := m.subs[key]
		for i, s := range subs {
			if s == sub {
				m.subs[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	}, nil
}

// publish delivers the current full document to every subscriber on key.
func (m *Memory) publish(key string) {
	m.mu.RLock()
	fields, ok := m.docs[key]
	subs := append([]*memSubscriber(nil), m.subs[key]...)
	m.mu.RUnlock()
	if !ok || len(subs) == 0 {
		return
	}

	snap, err := fieldsToSnapshot(fields)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("failed to decode document for publish", "key", key, "error", err)
		}
		return
	}

	for _, sub := range subs {
		// Non-blocking send (drop if the subscriber is slow/stuck).
		select {
		case sub.events <- snap:
		default:
			if m.logger != nil {
				m.logger.Warn("dropped change event for slow subscriber", "key", key)
			}
		}
	}
}

// snapshotToFields encodes a snapshot into a top-level field map.
func snapshotToFields(doc *domain.UserSnapshot) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return fields, nil
}

// fieldsToSnapshot decodes a field map back into a snapshot.
func fieldsToSnapshot(fields map[string]any) (*domain.UserSnapshot, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	var snap domain.UserSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	snap.Normalize()
	return &snap, nil
}
