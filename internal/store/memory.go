package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const subscriberBuffer = 100

// slot holds one source's current snapshot.
// A nil pointer means the source has not been fetched successfully yet.
type slot struct {
	current atomic.Pointer[Snapshot]
}

// MemoryStore is an in-memory implementation of [Store].
//
// The set of slots is fixed at construction, so the slot map itself is never
// written after [NewMemoryStore] returns and can be read without a lock.
// Each slot is an atomic pointer: Put swaps the pointer, Get loads it.
// A reader therefore sees either the previous or the new snapshot, never a
// partially written one.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber.
type MemoryStore struct {
	order       []string
	slots       map[string]*slot
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a store with one absent slot per source.
// Duplicate identifiers are collapsed; registration order is preserved.
func NewMemoryStore(sources ...string) *MemoryStore {
	m := &MemoryStore{
		order:       make([]string, 0, len(sources)),
		slots:       make(map[string]*slot, len(sources)),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, id := range sources {
		if _, exists := m.slots[id]; exists {
			continue
		}
		m.slots[id] = &slot{}
		m.order = append(m.order, id)
	}
	return m
}

// Get returns the current snapshot for source without taking a lock.
func (m *MemoryStore) Get(source string) (Snapshot, bool) {
	s, ok := m.slots[source]
	if !ok {
		return Snapshot{}, false
	}
	snap := s.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Put replaces the snapshot for source and notifies all subscribers.
//
// The snapshot's Source field is overwritten with source so a slot can never
// hold another source's data.
func (m *MemoryStore) Put(source string, snap Snapshot) error {
	s, ok := m.slots[source]
	if !ok {
		return fmt.Errorf("put %q: %w", source, ErrUnknownSource)
	}
	snap.Source = source
	s.current.Store(&snap)

	m.notifySubscribers(snap)
	return nil
}

// LastFetched returns when the current snapshot for source was fetched.
func (m *MemoryStore) LastFetched(source string) (time.Time, bool) {
	snap, ok := m.Get(source)
	if !ok {
		return time.Time{}, false
	}
	return snap.FetchedAt, true
}

// Sources returns a copy of the slot identifiers in registration order.
func (m *MemoryStore) Sources() []string {
	cp := make([]string, len(m.order))
	copy(cp, m.order)
	return cp
}

// GetAll returns every present snapshot in registration order.
// Absent slots are skipped.
func (m *MemoryStore) GetAll() []Snapshot {
	results := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		if snap, ok := m.Get(id); ok {
			results = append(results, snap)
		}
	}
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}
