package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
// Config and result are stored as JSONB documents keyed by config_key.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Insert adds a computed run. Returns ErrDuplicateKey if config_key exists.
func (s *ResultStore) Insert(ctx context.Context, r *domain.StoredResult) (err error) {
	if r == nil || r.ConfigKey == "" || r.Result == nil {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_result", start, err) }()

	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	res, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_results (config_key, config, result, created_at)
		VALUES ($1, $2, $3, $4)
	`, r.ConfigKey, cfg, res, createdAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest result: %w", err)
	}
	return nil
}

// GetByKey retrieves a run by its config key. Returns ErrNotFound if not exists.
func (s *ResultStore) GetByKey(ctx context.Context, configKey string) (r *domain.StoredResult, err error) {
	start := time.Now()
	defer func() { observe("get_result", start, err) }()

	row := s.pool.QueryRow(ctx, `
		SELECT config_key, config, result, created_at
		FROM backtest_results
		WHERE config_key = $1
	`, configKey)

	r, err = scanStored(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest result: %w", err)
	}
	return r, nil
}

// GetRecent retrieves up to limit runs, newest first.
func (s *ResultStore) GetRecent(ctx context.Context, limit int) (out []*domain.StoredResult, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("get_recent_results", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT config_key, config, result, created_at
		FROM backtest_results
		ORDER BY created_at DESC, config_key ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent results: %w", err)
	}

	out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.StoredResult, error) {
		return scanStored(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent results: %w", err)
	}
	return out, nil
}

func scanStored(row pgx.Row) (*domain.StoredResult, error) {
	var (
		r        domain.StoredResult
		cfg, res []byte
	)
	if err := row.Scan(&r.ConfigKey, &cfg, &res, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	r.Result = &domain.BacktestResult{}
	if err := json.Unmarshal(res, r.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
