package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Universe supplies the candidate pool, basket closes and the benchmark.
type Universe struct {
	prices     *PriceRepository
	priceStore storage.PriceStore
	stocks     storage.StockStore
}

// UniverseOptions contains configuration for creating a Universe.
type UniverseOptions struct {
	Prices     *PriceRepository
	PriceStore storage.PriceStore
	StockStore storage.StockStore // optional
}

// NewUniverse creates a universe provider.
func NewUniverse(opts UniverseOptions) *Universe {
	return &Universe{
		prices:     opts.Prices,
		priceStore: opts.PriceStore,
		stocks:     opts.StockStore,
	}
}

// DefaultUniverse returns every listed stock code, sorted ASC.
// Listed stocks come from the stock store when one is configured and
// non-empty; otherwise every code with price history is used.
func (u *Universe) DefaultUniverse(ctx context.Context) ([]string, error) {
	if u.stocks != nil {
		stocks, err := u.stocks.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stocks: %w", err)
		}
		if len(stocks) > 0 {
			codes := make([]string, len(stocks))
			for i, s := range stocks {
				codes[i] = s.Code
			}
			return codes, nil
		}
	}

	codes, err := u.priceStore.GetCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load price codes: %w", err)
	}
	return codes, nil
}

// TotalClose sums the closes of codes on day. Members without data that
// day are excluded from the sum; priced reports how many were included.
func (u *Universe) TotalClose(ctx context.Context, codes []string, day time.Time) (sum float64, priced int, err error) {
	for _, code := range codes {
		c, err := u.prices.ClosePrice(ctx, code, day)
		if errors.Is(err, ErrNoData) {
			continue
		}
		if err != nil {
			return 0, 0, err
		}
		sum += c
		priced++
	}
	return sum, priced, nil
}

// AverageClose returns the mean close of the members priced on day.
// ok is false when no member has data.
func (u *Universe) AverageClose(ctx context.Context, codes []string, day time.Time) (avg float64, ok bool, err error) {
	sum, priced, err := u.TotalClose(ctx, codes, day)
	if err != nil || priced == 0 {
		return 0, false, err
	}
	return sum / float64(priced), true, nil
}

// BenchmarkSeries computes the equal-weighted return of pool over days.
// The return of day i averages every member priced on both day i-1 and
// day i; a day with no such member returns 0. Cumulative returns compound
// the daily ones. Both are rounded to domain.ReturnPrecision.
func (u *Universe) BenchmarkSeries(ctx context.Context, pool []string, days []time.Time) (*domain.ReturnSeries, error) {
	series := &domain.ReturnSeries{}
	if len(days) < 2 {
		return series, nil
	}

	index := make(map[time.Time]int, len(days))
	for i, d := range days {
		index[d] = i
	}

	// closes[i][k] is member k's close on days[i], 0 when missing
	closes := make([][]float64, len(days))
	for i := range closes {
		closes[i] = make([]float64, len(pool))
	}
	for k, code := range pool {
		points, err := u.priceStore.GetByRange(ctx, code, days[0], days[len(days)-1])
		if err != nil {
			return nil, fmt.Errorf("load closes of %s: %w", code, err)
		}
		for _, p := range points {
			if i, ok := index[domain.TruncateDay(p.Day)]; ok {
				closes[i][k] = p.Close
			}
		}
	}

	growth := 1.0
	for i := 1; i < len(days); i++ {
		var total float64
		var n int
		for k := range pool {
			prev, cur := closes[i-1][k], closes[i][k]
			if prev <= 0 || cur <= 0 {
				continue
			}
			total += (cur - prev) / prev
			n++
		}

		daily := 0.0
		if n > 0 {
			daily = total / float64(n)
		}
		growth *= 1 + daily

		series.Append(days[i],
			domain.Round(daily, domain.ReturnPrecision),
			domain.Round(growth-1, domain.ReturnPrecision),
		)
	}

	return series, nil
}
