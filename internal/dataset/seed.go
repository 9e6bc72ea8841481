package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// SeedOptions names the CSV sources to import. Closes is required; the
// calendar is derived from the closes when Calendar is nil.
type SeedOptions struct {
	Closes   io.Reader
	Calendar io.Reader
	Stocks   io.Reader

	PriceStore      storage.PriceStore
	TradingDayStore storage.TradingDayStore
	StockStore      storage.StockStore // required only with Stocks
}

// SeedStats reports what was imported.
type SeedStats struct {
	Closes      int
	TradingDays int
	Stocks      int
	First       time.Time
	Last        time.Time
}

// Seed imports the sources into the stores. Stocks that already exist are
// left unchanged.
func Seed(ctx context.Context, opts SeedOptions) (*SeedStats, error) {
	if opts.Closes == nil {
		return nil, fmt.Errorf("seed: closes source is required: %w", storage.ErrInvalidInput)
	}

	points, err := LoadCloses(opts.Closes)
	if err != nil {
		return nil, fmt.Errorf("load closes: %w", err)
	}

	var days []time.Time
	if opts.Calendar != nil {
		days, err = LoadCalendar(opts.Calendar)
		if err != nil {
			return nil, fmt.Errorf("load calendar: %w", err)
		}
	} else {
		days = DeriveCalendar(points)
	}

	if err := opts.PriceStore.InsertBulk(ctx, points); err != nil {
		return nil, fmt.Errorf("insert closes: %w", err)
	}
	if err := opts.TradingDayStore.InsertBulk(ctx, days); err != nil {
		return nil, fmt.Errorf("insert trading days: %w", err)
	}

	stats := &SeedStats{Closes: len(points), TradingDays: len(days)}
	if len(days) > 0 {
		stats.First, stats.Last = days[0], days[len(days)-1]
	}

	if opts.Stocks != nil {
		stocks, err := LoadStocks(opts.Stocks)
		if err != nil {
			return nil, fmt.Errorf("load stocks: %w", err)
		}
		for _, s := range stocks {
			err := opts.StockStore.Insert(ctx, s)
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("insert stock %s: %w", s.Code, err)
			}
			stats.Stocks++
		}
	}

	return stats, nil
}

// Summary formats stats for logs.
func (s *SeedStats) Summary() string {
	if s.TradingDays == 0 {
		return fmt.Sprintf("%d closes, no trading days, %d stocks", s.Closes, s.Stocks)
	}
	return fmt.Sprintf("%d closes, %d trading days (%s to %s), %d stocks",
		s.Closes, s.TradingDays, domain.FormatDay(s.First), domain.FormatDay(s.Last), s.Stocks)
}
