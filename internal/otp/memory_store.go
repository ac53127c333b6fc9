package otp

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

type memoryRecord struct {
	codeHash  string
	expiresAt time.Time
}

// MemoryStore is the in-process OTP store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

// NewMemoryStore builds an in-memory OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (s *MemoryStore) Save(_ context.Context, email string, purpose Purpose, codeHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[otpKey(email, purpose)] = memoryRecord{codeHash: codeHash, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, email string, purpose Purpose, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := otpKey(email, purpose)
	rec, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	if time.Now().After(rec.expiresAt) {
		delete(s.records, key)
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.codeHash), []byte(codeHash)) != 1 {
		return ErrMismatch
	}
	delete(s.records, key)
	return nil
}
