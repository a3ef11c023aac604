package session

import (
	"sync"
	"time"
)

// Manager owns every active session, keyed by requester_id. Per spec.md
// §5's shared-state discipline, the map is only mutated on first sighting
// of a requester_id, which the transport's single-threaded interest
// callback already serialises; Manager's own mutex exists so the
// operational admin surface (internal/adminserver) can safely read it
// concurrently from its own goroutine. Grounded on
// internal/protocol/session.go's SessionManager.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deadline time.Duration
}

// NewManager creates an empty session manager. deadline is passed through
// to every session it creates (spec.md §9).
func NewManager(deadline time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		deadline: deadline,
	}
}

// GetOrCreate returns the session for requesterID, creating and
// registering an idle one on first sighting. created reports whether this
// call created it.
func (m *Manager) GetOrCreate(requesterID string) (s *Session, created bool) {
	m.mu.RLock()
	s, ok := m.sessions[requesterID]
	m.mu.RUnlock()
	if ok {
		return s, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[requesterID]; ok {
		return s, false
	}
	s = New(requesterID, m.deadline)
	m.sessions[requesterID] = s
	return s, true
}

// Get returns the session for requesterID if one exists.
func (m *Manager) Get(requesterID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[requesterID]
	return s, ok
}

// Remove discards a session, e.g. after it has been idle and expired.
func (m *Manager) Remove(requesterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, requesterID)
}

// Snapshot is a point-in-time view of one session, used by
// internal/adminserver's /sessions/stream websocket feed.
type Snapshot struct {
	RequesterID string    `json:"requester_id"`
	State       State     `json:"state"`
	PollCount   int       `json:"poll_count"`
	ReadyFlag   bool      `json:"ready_flag"`
	LastActive  time.Time `json:"last_active"`
}

// Snapshot returns a stable-ordered-by-insertion-irrelevant snapshot of
// every active session's observable state.
func (m *Manager) Snapshot() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Snapshot{
			RequesterID: s.RequesterID,
			State:       s.State(),
			PollCount:   s.PollCount(),
			ReadyFlag:   s.ReadyFlag(),
			LastActive:  s.LastActive,
		})
	}
	return out
}

// CleanupExpired removes every session whose optional deadline has
// elapsed, mirroring internal/protocol/session.go's Cleanup.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
