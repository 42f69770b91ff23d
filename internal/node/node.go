// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package node owns the fixed-size table of connection slots ("nodes")
// that bound how many sessions may be active at once, per spec §4.5.
package node

import (
	"sync"
	"time"
)

// Placeholder is the occupant handle recorded between claim and bind,
// before a connection has authenticated.
const Placeholder = "(connecting)"

// Slot is one line on the node table.
type Slot struct {
	ID       int
	Occupied bool
	UserID   int64
	Handle   string
	Activity string
	LastUsed time.Time
}

// View is a read-only snapshot of a Slot for Who's-Online rendering.
type View struct {
	ID         int
	Handle     string
	Activity   string
	IdleSecs   int
}

// Manager owns an RWMutex-guarded table of N slots, grounded on the
// teacher's RealManager (internal/terminal/manager.go) mutex discipline:
// snapshots take the read lock, mutations take the write lock.
type Manager struct {
	mu    sync.RWMutex
	slots []Slot
	now   func() time.Time
}

// New builds a Manager with n empty slots, numbered 1..n.
func New(n int) *Manager {
	slots := make([]Slot, n)
	for i := range slots {
		slots[i].ID = i + 1
	}
	return &Manager{slots: slots, now: time.Now}
}

// Claim scans 1..N in order and binds the lowest free id to a
// placeholder occupant. Returns ok=false when every slot is occupied —
// the Session must then render "line busy" and disconnect.
func (m *Manager) Claim() (id int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.slots {
		if !m.slots[i].Occupied {
			m.slots[i].Occupied = true
			m.slots[i].Handle = Placeholder
			m.slots[i].Activity = "connecting"
			m.slots[i].LastUsed = m.now()
			return m.slots[i].ID, true
		}
	}
	return 0, false
}

// Bind replaces a claimed slot's placeholder occupant with the
// authenticated user, once login completes.
func (m *Manager) Bind(nodeID int, userID int64, handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(nodeID); s != nil {
		s.UserID = userID
		s.Handle = handle
		s.Activity = "at main menu"
		s.LastUsed = m.now()
	}
}

// Release returns a slot to the free list. Idempotent: releasing a
// slot that is already free is a no-op, so every Session teardown path
// can call it unconditionally.
func (m *Manager) Release(nodeID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(nodeID); s != nil {
		*s = Slot{ID: s.ID}
	}
}

// SetActivity updates the activity label shown on Who's-Online.
func (m *Manager) SetActivity(nodeID int, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(nodeID); s != nil {
		s.Activity = label
	}
}

// Touch updates the last-input timestamp used for idle detection.
func (m *Manager) Touch(nodeID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(nodeID); s != nil {
		s.LastUsed = m.now()
	}
}

// Snapshot returns a read-only view of every occupied slot, for
// Who's-Online rendering. Acquires only the read lock.
func (m *Manager) Snapshot() []View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	views := make([]View, 0, len(m.slots))
	for _, s := range m.slots {
		if !s.Occupied {
			continue
		}
		views = append(views, View{
			ID:       s.ID,
			Handle:   s.Handle,
			Activity: s.Activity,
			IdleSecs: int(now.Sub(s.LastUsed).Seconds()),
		})
	}
	return views
}

// Count returns the total slot count and the number currently occupied.
func (m *Manager) Count() (total, occupied int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total = len(m.slots)
	for _, s := range m.slots {
		if s.Occupied {
			occupied++
		}
	}
	return total, occupied
}

// find must be called with m.mu held.
func (m *Manager) find(nodeID int) *Slot {
	for i := range m.slots {
		if m.slots[i].ID == nodeID {
			return &m.slots[i]
		}
	}
	return nil
}
