package memory

import (
	"context"
	"sort"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StoredResult // keyed by config_key
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*domain.StoredResult),
	}
}

// Insert adds a computed run. Returns ErrDuplicateKey if config_key exists.
func (s *ResultStore) Insert(_ context.Context, r *domain.StoredResult) error {
	if r == nil || r.ConfigKey == "" || r.Result == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ConfigKey]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ConfigKey] = copyStored(r)
	return nil
}

// GetByKey retrieves a run by its config key. Returns ErrNotFound if not exists.
func (s *ResultStore) GetByKey(_ context.Context, configKey string) (*domain.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[configKey]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyStored(r), nil
}

// GetRecent retrieves up to limit runs, newest first.
func (s *ResultStore) GetRecent(_ context.Context, limit int) ([]*domain.StoredResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.StoredResult, 0, len(s.data))
	for _, r := range s.data {
		all = append(all, r)
	}

	// created_at DESC, config_key ASC for a stable order
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ConfigKey < all[j].ConfigKey
	})

	if len(all) > limit {
		all = all[:limit]
	}
	result := make([]*domain.StoredResult, len(all))
	for i, r := range all {
		result[i] = copyStored(r)
	}
	return result, nil
}

func copyStored(r *domain.StoredResult) *domain.StoredResult {
	out := *r
	out.Config.StockPool = append([]string(nil), r.Config.StockPool...)
	out.Result = r.Result.Clone()
	return &out
}

var _ storage.ResultStore = (*ResultStore)(nil)
