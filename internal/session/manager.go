package session

import (
	"context"
	"log"
	"sync"
	"time"
)

// SnapshotStore persists periodic session snapshots so a crashed or
// restarted server can rebuild live attempts from durable state.
type SnapshotStore interface {
	SaveSnapshot(snap Snapshot) error
}

const flushInterval = 5 * time.Second

// Manager owns the live sessions for in-flight attempts and flushes
// dirty state on a fixed cadence. Terminal sessions are evicted after
// their final flush.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	store    SnapshotStore
}

func NewManager(store SnapshotStore) *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		store:    store,
	}
}

func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	m.sessions[s.attemptID] = s
	m.mu.Unlock()
}

func (m *Manager) Get(attemptID int64) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[attemptID]
	m.mu.RUnlock()
	return s, ok
}

// Release flushes a session one last time and drops it from the map.
// Called once an attempt reaches a terminal state.
func (m *Manager) Release(attemptID int64) {
	m.mu.Lock()
	s, ok := m.sessions[attemptID]
	delete(m.sessions, attemptID)
	m.mu.Unlock()
	if ok {
		m.flushOne(s)
	}
}

// StartFlushWorker runs the snapshot loop until the context is
// cancelled, then takes a best-effort final pass over everything still
// live.
func (m *Manager) StartFlushWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.flushAll()
			case <-ctx.Done():
				m.flushAll()
				log.Println("[session] flush worker stopped")
				return
			}
		}
	}()
}

func (m *Manager) flushAll() {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		m.flushOne(s)
	}
}

func (m *Manager) flushOne(s *Session) {
	snap, ok := s.TakeSnapshot()
	if !ok {
		return
	}
	if err := m.store.SaveSnapshot(snap); err != nil {
		log.Printf("WARN: snapshot flush failed for attempt %d: %v", snap.AttemptID, err)
		s.MarkDirty()
	}
}
