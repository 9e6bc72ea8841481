package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// TradingDayStore is an in-memory implementation of storage.TradingDayStore.
type TradingDayStore struct {
	mu   sync.RWMutex
	days []time.Time // sorted ASC, unique
	set  map[time.Time]struct{}
}

// NewTradingDayStore creates a new in-memory trading day store.
func NewTradingDayStore() *TradingDayStore {
	return &TradingDayStore{
		set: make(map[time.Time]struct{}),
	}
}

// InsertBulk adds multiple trading days. Fails entire batch on duplicate.
func (s *TradingDayStore) InsertBulk(_ context.Context, days []time.Time) error {
	if len(days) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		if d.IsZero() {
			return storage.ErrInvalidInput
		}
		day := domain.TruncateDay(d)
		if _, exists := s.set[day]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[day]; exists {
			return storage.ErrDuplicateKey
		}
		batch[day] = struct{}{}
	}

	for day := range batch {
		s.set[day] = struct{}{}
		s.days = append(s.days, day)
	}
	sort.Slice(s.days, func(i, j int) bool {
		return s.days[i].Before(s.days[j])
	})

	return nil
}

// GetByRange retrieves trading days within [start, end] (inclusive), ordered ASC.
func (s *TradingDayStore) GetByRange(_ context.Context, start, end time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = domain.TruncateDay(start), domain.TruncateDay(end)
	lo := sort.Search(len(s.days), func(i int) bool { return !s.days[i].Before(start) })

	var result []time.Time
	for i := lo; i < len(s.days) && !s.days[i].After(end); i++ {
		result = append(result, s.days[i])
	}
	return result, nil
}

// GetBefore retrieves up to limit trading days strictly before date, ordered DESC.
func (s *TradingDayStore) GetBefore(_ context.Context, date time.Time, limit int) ([]time.Time, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	date = domain.TruncateDay(date)
	hi := sort.Search(len(s.days), func(i int) bool { return !s.days[i].Before(date) })

	result := make([]time.Time, 0, limit)
	for i := hi - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.days[i])
	}
	return result, nil
}

// GetFirst returns the earliest known trading day.
func (s *TradingDayStore) GetFirst(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.days) == 0 {
		return time.Time{}, storage.ErrNotFound
	}
	return s.days[0], nil
}

var _ storage.TradingDayStore = (*TradingDayStore)(nil)
