// Package app wires configuration, stores and the backtest engine for the commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"momentum-lab/internal/config"
	"momentum-lab/internal/dataset"
	"momentum-lab/internal/storage"
	chstore "momentum-lab/internal/storage/clickhouse"
	"momentum-lab/internal/storage/memory"
	"momentum-lab/internal/storage/migrations"
	pgstore "momentum-lab/internal/storage/postgres"
)

// Stores holds every store the engine reads or writes.
type Stores struct {
	Prices      storage.PriceStore
	TradingDays storage.TradingDayStore
	Stocks      storage.StockStore
	Results     storage.ResultStore

	closers []func()
}

// Close releases database connections. Safe to call on memory stores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewMemoryStores returns empty in-memory stores.
func NewMemoryStores() *Stores {
	return &Stores{
		Prices:      memory.NewPriceStore(),
		TradingDays: memory.NewTradingDayStore(),
		Stocks:      memory.NewStockStore(),
		Results:     memory.NewResultStore(),
	}
}

// OpenStores creates the stores for cfg.Backend and seeds them from the
// configured CSV files, if any.
//
// The sql backend keeps the calendar, universe and runs in PostgreSQL and
// closes in ClickHouse.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (*Stores, error) {
	if logger == nil {
		logger = log.Default()
	}

	var stores *Stores
	switch cfg.Backend {
	case config.BackendSQL:
		var err error
		stores, err = openSQL(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	default:
		stores = NewMemoryStores()
	}

	if cfg.ClosesCSV == "" {
		if cfg.Backend != config.BackendSQL {
			logger.Println("No closes CSV configured, memory stores start empty")
		}
		return stores, nil
	}

	stats, err := SeedFiles(ctx, stores, cfg.ClosesCSV, cfg.CalendarCSV, cfg.StocksCSV)
	if err != nil {
		stores.Close()
		return nil, err
	}
	logger.Printf("Seeded %s", stats.Summary())
	return stores, nil
}

func openSQL(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (*Stores, error) {
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	var conn *chstore.Conn
	if cfg.Migrate {
		n, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Printf("Applied %d postgres migration(s)", n)

		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Println("Applied clickhouse migrations")
	} else {
		conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
	}

	return &Stores{
		Prices:      chstore.NewPriceStore(conn),
		TradingDays: pgstore.NewTradingDayStore(pool),
		Stocks:      pgstore.NewStockStore(pool),
		Results:     pgstore.NewResultStore(pool),
		closers: []func(){
			pool.Close,
			func() { conn.Close() },
		},
	}, nil
}

// SeedFiles imports the CSV files into stores. Only closes is required.
func SeedFiles(ctx context.Context, stores *Stores, closes, calendar, stocks string) (*dataset.SeedStats, error) {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	open := func(path string) (io.Reader, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, f)
		return f, nil
	}

	opts := dataset.SeedOptions{
		PriceStore:      stores.Prices,
		TradingDayStore: stores.TradingDays,
		StockStore:      stores.Stocks,
	}
	var err error
	if opts.Closes, err = open(closes); err != nil {
		return nil, err
	}
	if opts.Calendar, err = open(calendar); err != nil {
		return nil, err
	}
	if opts.Stocks, err = open(stocks); err != nil {
		return nil, err
	}

	stats, err := dataset.Seed(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("seed stores: %w", err)
	}
	return stats, nil
}
