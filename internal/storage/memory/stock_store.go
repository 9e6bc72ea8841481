package memory

import (
	"context"
	"sort"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// StockStore is an in-memory implementation of storage.StockStore.
type StockStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Stock // keyed by code
}

// NewStockStore creates a new in-memory stock store.
func NewStockStore() *StockStore {
	return &StockStore{
		data: make(map[string]*domain.Stock),
	}
}

// Insert adds a new stock. Returns ErrDuplicateKey if code exists.
func (s *StockStore) Insert(_ context.Context, st *domain.Stock) error {
	if st == nil || st.Code == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[st.Code]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	stockCopy := *st
	s.data[st.Code] = &stockCopy
	return nil
}

// GetByCode retrieves a stock by code. Returns ErrNotFound if not exists.
func (s *StockStore) GetByCode(_ context.Context, code string) (*domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data[code]
	if !exists {
		return nil, storage.ErrNotFound
	}
	stockCopy := *st
	return &stockCopy, nil
}

// GetAll retrieves all stocks ordered by code ASC.
func (s *StockStore) GetAll(_ context.Context) ([]*domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Stock, 0, len(s.data))
	for _, st := range s.data {
		stockCopy := *st
		result = append(result, &stockCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.StockStore = (*StockStore)(nil)
