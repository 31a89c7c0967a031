// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"sync"
	"time"
)

// Listener is invoked whenever the current session changes. A nil session
// means the caller signed out or the session was dropped.
type Listener func(*Session)

// SessionStore is the single source of truth for whether there is an
// authenticated caller in the current execution context.
type SessionStore interface {
	// Current returns the active session, or (nil, nil) when there is none.
	Current(ctx context.Context) (*Session, error)

	// OnChange registers a listener for login, logout and refresh. The
	// returned function unsubscribes it.
	OnChange(listener Listener) (unsubscribe func())
}

// IdentityProvider is the identity service as seen from a client: a session
// store plus the operations that change the session on the service side.
type IdentityProvider interface {
	SessionStore

	// SignOut invalidates the current session with the identity service and
	// drops it locally.
	SignOut(ctx context.Context) error

	// UpdatePassword changes the secret of the signed-in subject.
	UpdatePassword(ctx context.Context, newSecret string) error
}

// MemoryStore is a SessionStore holding at most one session in memory.
// Listeners are called synchronously, in registration order, after the
// session has been replaced.
type MemoryStore struct {
	mu        sync.Mutex
	current   *Session
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listeners: make(map[uint64]Listener),
		now:       time.Now,
	}
}

// Current returns the held session. An expired session is reported as absent.
func (m *MemoryStore) Current(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.IsExpiredAt(m.now()) {
		return nil, nil
	}
	return m.current, nil
}

// Set replaces the held session and notifies listeners.
func (m *MemoryStore) Set(session *Session) {
	m.replace(session)
}

// Clear drops the held session and notifies listeners.
func (m *MemoryStore) Clear() {
	m.replace(nil)
}

// OnChange implements SessionStore.
func (m *MemoryStore) OnChange(listener Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	m.order = append(m.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
			for i, v := range m.order {
				if v == id {
					m.order = append(m.order[:i], m.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (m *MemoryStore) replace(session *Session) {
	m.mu.Lock()
	m.current = session
	listeners := make([]Listener, 0, len(m.order))
	for _, id := range m.order {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}

var _ SessionStore = (*MemoryStore)(nil)
