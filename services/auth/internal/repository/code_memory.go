package repository

import (
	"context"
	"sync"
	"time"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type codeKey struct {
	identity string
	purpose  domain.Purpose
}

// MemoryCodeStore keeps codes in process. Used for local runs and tests.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[codeKey]domain.VerificationCode
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[codeKey]domain.VerificationCode)}
}

func (s *MemoryCodeStore) Upsert(_ context.Context, c *domain.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[codeKey{c.Identity, c.Purpose}] = *c
	return nil
}

func (s *MemoryCodeStore) Find(_ context.Context, identity string, purpose domain.Purpose) (*domain.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[codeKey{identity, purpose}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, identity string, purpose domain.Purpose, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := codeKey{identity, purpose}
	c, ok := s.codes[k]
	if !ok || c.Code != code || c.IsExpired(now) {
		return false, nil
	}
	delete(s.codes, k)
	return true, nil
}

func (s *MemoryCodeStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, c := range s.codes {
		if c.IsExpired(now) {
			delete(s.codes, k)
			n++
		}
	}
	return n, nil
}
