package storage

import (
	"context"
	"time"

	"momentum-lab/internal/domain"
)

// PriceStore provides access to daily_closes storage.
type PriceStore interface {
	// InsertBulk adds multiple closes. Fails entire batch on duplicate (code, day).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetClose retrieves the close of code on day. Returns ErrNotFound if absent.
	GetClose(ctx context.Context, code string, day time.Time) (*domain.PricePoint, error)

	// GetByRange retrieves closes for code within [start, end] (inclusive), ordered by day ASC.
	GetByRange(ctx context.Context, code string, start, end time.Time) ([]*domain.PricePoint, error)

	// GetCodes returns every distinct stock code with at least one close, sorted ASC.
	GetCodes(ctx context.Context) ([]string, error)
}

// TradingDayStore provides access to trading_days storage.
type TradingDayStore interface {
	// InsertBulk adds multiple trading days. Fails entire batch on duplicate day.
	InsertBulk(ctx context.Context, days []time.Time) error

	// GetByRange retrieves trading days within [start, end] (inclusive), ordered ASC.
	GetByRange(ctx context.Context, start, end time.Time) ([]time.Time, error)

	// GetBefore retrieves up to limit trading days strictly before date, ordered DESC.
	GetBefore(ctx context.Context, date time.Time, limit int) ([]time.Time, error)

	// GetFirst returns the earliest known trading day. Returns ErrNotFound if empty.
	GetFirst(ctx context.Context) (time.Time, error)
}

// StockStore provides access to stocks storage.
type StockStore interface {
	// Insert adds a new stock. Returns ErrDuplicateKey if code exists.
	Insert(ctx context.Context, s *domain.Stock) error

	// GetByCode retrieves a stock by code. Returns ErrNotFound if not exists.
	GetByCode(ctx context.Context, code string) (*domain.Stock, error)

	// GetAll retrieves all stocks ordered by code ASC.
	GetAll(ctx context.Context) ([]*domain.Stock, error)
}

// ResultStore provides access to backtest_results storage.
type ResultStore interface {
	// Insert adds a computed run. Returns ErrDuplicateKey if config_key exists.
	Insert(ctx context.Context, r *domain.StoredResult) error

	// GetByKey retrieves a run by its config key. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, configKey string) (*domain.StoredResult, error)

	// GetRecent retrieves up to limit runs, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.StoredResult, error)
}
