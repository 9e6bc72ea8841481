// Package ranking scores candidates over a formation window and selects
// the top quintile.
package ranking

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/market"
	"momentum-lab/internal/observability"
)

// DefaultParallelism bounds concurrent rate computations when none is set.
const DefaultParallelism = 8

// Rate is the simple return of one code over a formation window.
// Available is false when either endpoint close was missing; Value is then
// meaningless and the code ranks below every available rate.
type Rate struct {
	Code      string
	Value     float64
	Available bool
}

// CloseSource is the subset of market.PriceRepository used for ranking.
type CloseSource interface {
	ClosePrice(ctx context.Context, code string, day time.Time) (float64, error)
}

// Ranker computes formation-window returns and winner sets.
type Ranker struct {
	prices      CloseSource
	parallelism int
}

// NewRanker creates a ranker. parallelism <= 0 uses DefaultParallelism.
func NewRanker(prices CloseSource, parallelism int) *Ranker {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Ranker{prices: prices, parallelism: parallelism}
}

// CountRate returns (close(end) - close(begin)) / close(begin) for code.
// The value is not rounded, so returns closer than any display precision
// still rank apart.
// A missing close on either day yields an unavailable rate, not an error.
func (r *Ranker) CountRate(ctx context.Context, begin, end time.Time, code string) (Rate, error) {
	first, err := r.prices.ClosePrice(ctx, code, begin)
	if errors.Is(err, market.ErrNoData) {
		observability.RecordUnavailableRate()
		return Rate{Code: code}, nil
	}
	if err != nil {
		return Rate{}, err
	}

	last, err := r.prices.ClosePrice(ctx, code, end)
	if errors.Is(err, market.ErrNoData) {
		observability.RecordUnavailableRate()
		return Rate{Code: code}, nil
	}
	if err != nil {
		return Rate{}, err
	}

	return Rate{
		Code:      code,
		Value:     (last - first) / first,
		Available: true,
	}, nil
}

// Rates computes the rate of every code in pool concurrently.
// The result is aligned with pool.
func (r *Ranker) Rates(ctx context.Context, begin, end time.Time, pool []string) ([]Rate, error) {
	rates := make([]Rate, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, code := range pool {
		g.Go(func() error {
			rate, err := r.CountRate(gctx, begin, end, code)
			if err != nil {
				return err
			}
			rates[i] = rate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rates, nil
}

// Winners returns the top floor(len(pool)/5) codes of pool by return over
// [begin, end]. Pools smaller than five yield an empty set.
func (r *Ranker) Winners(ctx context.Context, begin, end time.Time, pool []string) ([]string, error) {
	n := len(pool) / domain.WinnerQuintile
	if n == 0 {
		return []string{}, nil
	}

	rates, err := r.Rates(ctx, begin, end, pool)
	if err != nil {
		return nil, err
	}

	SortRates(rates)

	winners := make([]string, n)
	for i := range winners {
		winners[i] = rates[i].Code
	}
	return winners, nil
}

// SortRates orders rates best first: available before unavailable, then
// by value DESC. Equal rates keep their relative order.
func SortRates(rates []Rate) {
	sort.SliceStable(rates, func(i, j int) bool {
		a, b := rates[i], rates[j]
		if a.Available != b.Available {
			return a.Available
		}
		if !a.Available {
			return false
		}
		return a.Value > b.Value
	})
}
