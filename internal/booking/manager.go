package booking

import (
	"sync"
	"time"
)

type flowEntry struct {
	ctrl    *Controller
	touched time.Time
}

// Manager keeps one live Controller per (session, lawyer) pair. Flows are
// in-memory only: they disappear on logout, on a completed booking, and when
// idle long enough to be swept.
type Manager struct {
	mu    sync.Mutex
	flows map[string]*flowEntry
	clock func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		flows: make(map[string]*flowEntry),
		clock: time.Now,
	}
}

func flowKey(sessionID, lawyerID string) string {
	return sessionID + "/" + lawyerID
}

// GetOrCreate returns the live flow for the pair, creating it with the
// supplied constructor on first touch.
func (m *Manager) GetOrCreate(sessionID, lawyerID string, build func() *Controller) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := flowKey(sessionID, lawyerID)
	if e, ok := m.flows[key]; ok {
		e.touched = m.clock()
		return e.ctrl
	}

	ctrl := build()
	m.flows[key] = &flowEntry{ctrl: ctrl, touched: m.clock()}
	return ctrl
}

// Get returns the live flow for the pair, if any.
func (m *Manager) Get(sessionID, lawyerID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.flows[flowKey(sessionID, lawyerID)]
	if !ok {
		return nil, false
	}
	e.touched = m.clock()
	return e.ctrl, true
}

// Remove drops one flow, discarding its draft.
func (m *Manager) Remove(sessionID, lawyerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, flowKey(sessionID, lawyerID))
}

// RemoveSession drops every flow belonging to a session (logout).
func (m *Manager) RemoveSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := sessionID + "/"
	for key := range m.flows {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.flows, key)
		}
	}
}

// EvictIdle sweeps flows untouched for longer than maxIdle and reports how
// many were dropped.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock().Add(-maxIdle)
	evicted := 0
	for key, e := range m.flows {
		if e.touched.Before(cutoff) {
			delete(m.flows, key)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live flows.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}
