package intake

import (
	"slotbook/pkg/model"
	"sync"
	"time"
)

// SessionStore keeps in-flight intake dialogues. Sessions are ephemeral by
// design: losing one costs the user a restart of the dialogue, never a
// booking.
type SessionStore interface {
	Get(userID int64) (*model.Session, bool)
	Put(session *model.Session)
	Delete(userID int64)
	Stop()
}

type inMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*model.Session
	ttl      time.Duration
	stopCh   chan struct{}
}

func NewInMemorySessionStore(ttl time.Duration) SessionStore {
	store := &inMemorySessionStore{
		sessions: make(map[int64]*model.Session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *inMemorySessionStore) Get(userID int64) (*model.Session, bool) {
	s.mu.RLock()
	session, exists := s.sessions[userID]
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(session.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.sessions, userID)
		s.mu.Unlock()
		return nil, false
	}

	return session, true
}

func (s *inMemorySessionStore) Put(session *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = time.Now()
	s.sessions[session.UserID] = session
}

func (s *inMemorySessionStore) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *inMemorySessionStore) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for userID, session := range s.sessions {
				if time.Since(session.UpdatedAt) > s.ttl {
					delete(s.sessions, userID)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *inMemorySessionStore) Stop() {
	close(s.stopCh)
}
