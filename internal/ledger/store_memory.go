package ledger

import (
	"context"
	"fmt"
	"sync"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

// MemoryStore implements Store in memory
type MemoryStore struct {
	accounts map[core.Pubkey]*Account
	mu       sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[core.Pubkey]*Account)}
}

func (s *MemoryStore) Load(ctx context.Context, key core.Pubkey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, key)
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, accounts ...*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range accounts {
		s.accounts[acc.Key] = acc.Clone()
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
