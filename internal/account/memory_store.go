package account

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and local
// development. It mirrors the upsert semantics of the pg store.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryStore returns an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) Create(_ context.Context, id, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[id]; ok {
		existing.Email = email
		s.accounts[id] = existing
		return &existing, nil
	}

	a := Account{
		ID:               id,
		Email:            email,
		SubscriptionTier: TierFree,
		ChartCount:       0,
		CreatedAt:        time.Now().UTC(),
	}
	s.accounts[id] = a
	return &a, nil
}

func (s *MemoryStore) UpdateTier(_ context.Context, id string, tier Tier) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.SubscriptionTier = tier
	s.accounts[id] = a
	return nil
}

func (s *MemoryStore) UpdateChartCount(_ context.Context, id string, count int) error {
	if count < 0 {
		count = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.ChartCount = count
	s.accounts[id] = a
	return nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, id string, firstName, lastName *string) error {
	if firstName == nil && lastName == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if firstName != nil {
		a.FirstName = *firstName
	}
	if lastName != nil {
		a.LastName = *lastName
	}
	s.accounts[id] = a
	return nil
}
