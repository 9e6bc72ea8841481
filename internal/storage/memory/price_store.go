package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// priceKey identifies one close.
type priceKey struct {
	code string
	day  time.Time
}

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu     sync.RWMutex
	data   map[priceKey]*domain.PricePoint
	byCode map[string][]*domain.PricePoint // sorted by day ASC
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data:   make(map[priceKey]*domain.PricePoint),
		byCode: make(map[string][]*domain.PricePoint),
	}
}

// InsertBulk adds multiple closes. Fails entire batch on duplicate.
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[priceKey]struct{}, len(points))

	// First pass: validate and check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Code == "" || p.Close <= 0 {
			return storage.ErrInvalidInput
		}
		key := priceKey{p.Code, domain.TruncateDay(p.Day)}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	touched := make(map[string]struct{})
	for _, p := range points {
		pointCopy := *p
		pointCopy.Day = domain.TruncateDay(p.Day)
		s.data[priceKey{p.Code, pointCopy.Day}] = &pointCopy
		s.byCode[p.Code] = append(s.byCode[p.Code], &pointCopy)
		touched[p.Code] = struct{}{}
	}

	for code := range touched {
		series := s.byCode[code]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Day.Before(series[j].Day)
		})
	}

	return nil
}

// GetClose retrieves the close of code on day. Returns ErrNotFound if absent.
func (s *PriceStore) GetClose(_ context.Context, code string, day time.Time) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[priceKey{code, domain.TruncateDay(day)}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	pointCopy := *p
	return &pointCopy, nil
}

// GetByRange retrieves closes for code within [start, end] (inclusive).
func (s *PriceStore) GetByRange(_ context.Context, code string, start, end time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = domain.TruncateDay(start), domain.TruncateDay(end)

	var result []*domain.PricePoint
	for _, p := range s.byCode[code] {
		if p.Day.Before(start) || p.Day.After(end) {
			continue
		}
		pointCopy := *p
		result = append(result, &pointCopy)
	}
	return result, nil
}

// GetCodes returns every distinct stock code, sorted ASC.
func (s *PriceStore) GetCodes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.byCode))
	for code := range s.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

var _ storage.PriceStore = (*PriceStore)(nil)
