// Package backtest runs momentum backtests end to end: validation, the
// portfolio simulation, the benchmark, statistics, caching and persistence.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"momentum-lab/internal/cache"
	"momentum-lab/internal/calendar"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/idhash"
	"momentum-lab/internal/market"
	"momentum-lab/internal/metrics"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/portfolio"
	"momentum-lab/internal/ranking"
	"momentum-lab/internal/storage"
)

// Run status labels.
const (
	StatusOK      = "ok"
	StatusCached  = "cached"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Runner executes backtests.
type Runner struct {
	calendar    *calendar.Calendar
	universe    *market.Universe
	simulator   *portfolio.Simulator
	cache       *cache.ResultCache
	resultStore storage.ResultStore
	params      metrics.Params
	logger      *log.Logger

	runs     atomic.Int64
	cached   atomic.Int64
	failures atomic.Int64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Calendar    *calendar.Calendar
	Prices      *market.PriceRepository
	Universe    *market.Universe
	Cache       *cache.ResultCache  // optional, results are recomputed when nil
	ResultStore storage.ResultStore // optional, results are not persisted when nil
	Params      metrics.Params
	Parallelism int // concurrent rate lookups while ranking
	Logger      *log.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	params := opts.Params
	if params.PeriodsPerYear == 0 {
		params = metrics.DefaultParams()
	}

	return &Runner{
		calendar: opts.Calendar,
		universe: opts.Universe,
		simulator: portfolio.NewSimulator(portfolio.SimulatorOptions{
			Calendar: opts.Calendar,
			Selector: ranking.NewRanker(opts.Prices, opts.Parallelism),
			Pricer:   opts.Universe,
		}),
		cache:       opts.Cache,
		resultStore: opts.ResultStore,
		params:      params,
		logger:      logger,
	}
}

// RunnerStats counts runs since the runner was created.
type RunnerStats struct {
	Runs     int64 `json:"runs"`
	Cached   int64 `json:"cached"`
	Failures int64 `json:"failures"`
}

// Stats returns run counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Runs:     r.runs.Load(),
		Cached:   r.cached.Load(),
		Failures: r.failures.Load(),
	}
}

// ConfigKey returns the cache and persistence key of cfg.
func (r *Runner) ConfigKey(cfg domain.BacktestConfig) string {
	return idhash.ComputeConfigKey(cfg, r.params)
}

// Run executes one backtest.
// Steps:
//  1. Normalize and validate the config
//  2. Serve from the cache, or compute under single flight
//  3. Persist a freshly computed result
//
// Returns an error wrapping ErrInvalidConfig for a bad config. Any other
// error means a store was unavailable.
func (r *Runner) Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.BacktestResult, error) {
	start := time.Now()
	r.runs.Add(1)

	// 1. Normalize and validate
	cfg = cfg.Normalize()
	if err := Validate(cfg); err != nil {
		r.finish(StatusInvalid, start)
		return nil, err
	}
	key := r.ConfigKey(cfg)

	// 2. Cache or compute
	if r.cache == nil {
		result, err := r.compute(ctx, cfg, key)
		if err != nil {
			r.finish(statusOf(err), start)
			return nil, err
		}
		r.finish(StatusOK, start)
		return result, nil
	}

	result, hit, err := r.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*domain.BacktestResult, error) {
		return r.compute(ctx, cfg, key)
	})
	if err != nil {
		r.finish(statusOf(err), start)
		return nil, err
	}
	if hit {
		r.cached.Add(1)
		r.finish(StatusCached, start)
		return result, nil
	}
	r.finish(StatusOK, start)
	return result, nil
}

// Replay recomputes cfg from the stores, bypassing the cache and
// persistence. Used to verify that stored runs are reproducible.
func (r *Runner) Replay(ctx context.Context, cfg domain.BacktestConfig) (*domain.BacktestResult, error) {
	cfg = cfg.Normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return r.simulate(ctx, cfg, r.ConfigKey(cfg))
}

// compute simulates a validated config and persists the result.
func (r *Runner) compute(ctx context.Context, cfg domain.BacktestConfig, key string) (*domain.BacktestResult, error) {
	result, err := r.simulate(ctx, cfg, key)
	if err != nil {
		return nil, err
	}

	if r.resultStore != nil {
		stored := &domain.StoredResult{
			ConfigKey: key,
			Config:    cfg,
			Result:    result,
			CreatedAt: time.Now().UTC(),
		}
		err := r.resultStore.Insert(ctx, stored)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			// Same config already persisted by an earlier process
		case err != nil:
			return nil, fmt.Errorf("persist result %s: %w", key, err)
		}
	}

	return result, nil
}

// simulate runs the simulation, benchmark and statistics for a validated config.
func (r *Runner) simulate(ctx context.Context, cfg domain.BacktestConfig, key string) (*domain.BacktestResult, error) {
	pool := cfg.StockPool
	if len(pool) == 0 {
		var err error
		pool, err = r.universe.DefaultUniverse(ctx)
		if err != nil {
			return nil, err
		}
	}

	days, err := r.calendar.TradingDaysBetween(ctx, cfg.BeginDate, cfg.EndDate, calendar.All)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrEmptyRange,
			domain.FormatDay(cfg.BeginDate), domain.FormatDay(cfg.EndDate))
	}

	outcome, err := r.simulator.Run(ctx, days, pool, cfg.FormativeDays, cfg.HoldingDays)
	if err != nil {
		return nil, err
	}

	benchmark, err := r.universe.BenchmarkSeries(ctx, pool, days)
	if err != nil {
		return nil, err
	}

	stats := metrics.Compute(outcome.Series, benchmark, cfg.HoldingDays, r.params)

	result := Assemble(days, outcome.Series, benchmark, stats)
	result.ConfigKey = key
	result.InitialCapital = domain.InitialCapital
	result.FinalValue = outcome.FinalValue.InexactFloat64()
	result.Rebalances = outcome.Rebalances

	r.logger.Printf("backtest %s: %d days, pool %d, %d rebalances, final value %s",
		key[:12], len(days), len(pool), len(outcome.Rebalances), outcome.FinalValue.StringFixed(0))

	return result, nil
}

func (r *Runner) finish(status string, start time.Time) {
	if status == StatusError || status == StatusInvalid {
		r.failures.Add(1)
	}
	observability.RecordBacktestRun(status, time.Since(start).Seconds())
}

func statusOf(err error) string {
	if errors.Is(err, ErrInvalidConfig) {
		return StatusInvalid
	}
	return StatusError
}
