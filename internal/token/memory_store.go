package token

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	userID     string
	rotationID string
	expiresAt  time.Time
}

// MemoryStore is the in-process session store for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

// NewMemoryStore builds an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memorySession)}
}

func (s *MemoryStore) Put(_ context.Context, sessionID, userID, rotationID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memorySession{userID: userID, rotationID: rotationID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Live(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Swap(_ context.Context, sessionID, oldRotationID, newRotationID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || time.Now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return ErrRevoked
	}
	if sess.rotationID != oldRotationID {
		delete(s.sessions, sessionID)
		return ErrReused
	}
	sess.rotationID = newRotationID
	sess.expiresAt = time.Now().Add(ttl)
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) DeleteAllForUser(_ context.Context, userID, keepSessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.userID == userID && id != keepSessionID {
			delete(s.sessions, id)
		}
	}
	return nil
}
