package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// StockStore implements storage.StockStore using PostgreSQL.
type StockStore struct {
	pool *Pool
}

// NewStockStore creates a new StockStore.
func NewStockStore(pool *Pool) *StockStore {
	return &StockStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StockStore = (*StockStore)(nil)

// Insert adds a new stock. Returns ErrDuplicateKey if code exists.
func (s *StockStore) Insert(ctx context.Context, st *domain.Stock) (err error) {
	if st == nil || st.Code == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_stock", start, err) }()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO stocks (code, name, market) VALUES ($1, $2, $3)
	`, st.Code, st.Name, st.Market)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert stock: %w", err)
	}
	return nil
}

// GetByCode retrieves a stock by code. Returns ErrNotFound if not exists.
func (s *StockStore) GetByCode(ctx context.Context, code string) (st *domain.Stock, err error) {
	start := time.Now()
	defer func() { observe("get_stock", start, err) }()

	var out domain.Stock
	err = s.pool.QueryRow(ctx, `
		SELECT code, name, market FROM stocks WHERE code = $1
	`, code).Scan(&out.Code, &out.Name, &out.Market)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get stock by code: %w", err)
	}
	return &out, nil
}

// GetAll retrieves all stocks ordered by code ASC.
func (s *StockStore) GetAll(ctx context.Context) (stocks []*domain.Stock, err error) {
	start := time.Now()
	defer func() { observe("get_stocks", start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT code, name, market FROM stocks ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}

	stocks, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Stock, error) {
		var st domain.Stock
		err := row.Scan(&st.Code, &st.Name, &st.Market)
		return &st, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan stocks: %w", err)
	}
	return stocks, nil
}
