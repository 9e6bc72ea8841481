package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// TradingDayStore implements storage.TradingDayStore using PostgreSQL.
type TradingDayStore struct {
	pool *Pool
}

// NewTradingDayStore creates a new TradingDayStore.
func NewTradingDayStore(pool *Pool) *TradingDayStore {
	return &TradingDayStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradingDayStore = (*TradingDayStore)(nil)

// InsertBulk adds multiple trading days atomically. Fails entire batch on any duplicate.
func (s *TradingDayStore) InsertBulk(ctx context.Context, days []time.Time) (err error) {
	if len(days) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_trading_days", start, err) }()

	rows := make([][]any, 0, len(days))
	for _, d := range days {
		if d.IsZero() {
			return storage.ErrInvalidInput
		}
		rows = append(rows, []any{domain.TruncateDay(d)})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"trading_days"}, []string{"day"}, pgx.CopyFromRows(rows))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy trading days: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRange retrieves trading days within [start, end] (inclusive), ordered ASC.
func (s *TradingDayStore) GetByRange(ctx context.Context, from, to time.Time) (days []time.Time, err error) {
	start := time.Now()
	defer func() { observe("get_trading_days_range", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT day FROM trading_days
		WHERE day >= $1 AND day <= $2
		ORDER BY day ASC
	`, domain.TruncateDay(from), domain.TruncateDay(to))
	if err != nil {
		return nil, fmt.Errorf("query trading days by range: %w", err)
	}
	return collectDays(rows)
}

// GetBefore retrieves up to limit trading days strictly before date, ordered DESC.
func (s *TradingDayStore) GetBefore(ctx context.Context, date time.Time, limit int) (days []time.Time, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("get_trading_days_before", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT day FROM trading_days
		WHERE day < $1
		ORDER BY day DESC
		LIMIT $2
	`, domain.TruncateDay(date), limit)
	if err != nil {
		return nil, fmt.Errorf("query trading days before: %w", err)
	}
	return collectDays(rows)
}

// GetFirst returns the earliest known trading day. Returns ErrNotFound if empty.
func (s *TradingDayStore) GetFirst(ctx context.Context) (day time.Time, err error) {
	start := time.Now()
	defer func() { observe("get_first_trading_day", start, err) }()

	err = s.pool.QueryRow(ctx, `SELECT day FROM trading_days ORDER BY day ASC LIMIT 1`).Scan(&day)
	if err != nil {
		if isNotFoundError(err) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("get first trading day: %w", err)
	}
	return domain.TruncateDay(day), nil
}

func collectDays(rows pgx.Rows) ([]time.Time, error) {
	days, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (time.Time, error) {
		var d time.Time
		err := row.Scan(&d)
		return domain.TruncateDay(d), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan trading days: %w", err)
	}
	return days, nil
}
