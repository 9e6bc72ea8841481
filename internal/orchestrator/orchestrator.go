// Package orchestrator runs parameter sweeps: one backtest per
// (formative, holding) combination over the same range and pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"momentum-lab/internal/backtest"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/reporting"
)

// ErrEmptyGrid is returned when a sweep has no combinations to run.
var ErrEmptyGrid = fmt.Errorf("%w: empty parameter grid", backtest.ErrInvalidConfig)

// Backtester runs one backtest.
type Backtester interface {
	Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.BacktestResult, error)
}

// Orchestrator coordinates sweep execution.
type Orchestrator struct {
	runner  Backtester
	logger  *log.Logger
	verbose bool
}

// Options for creating Orchestrator.
type Options struct {
	Runner  Backtester
	Logger  *log.Logger
	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		runner:  opts.Runner,
		logger:  logger,
		verbose: opts.Verbose,
	}
}

// SweepResult contains results from a sweep.
type SweepResult struct {
	Rows      []reporting.SweepRow // sorted by Sharpe ratio DESC, failures last
	Completed int
	Failed    int
}

// Sweep runs every combination of formative and holding days on base.
// Combinations that fail validation or hit a store error are reported in
// their row; cancellation aborts the sweep.
func (o *Orchestrator) Sweep(ctx context.Context, base domain.BacktestConfig, formative, holding []int) (*SweepResult, error) {
	formative, holding = dedupe(formative), dedupe(holding)
	if len(formative) == 0 || len(holding) == 0 {
		return nil, ErrEmptyGrid
	}

	o.log("Sweeping %d x %d combinations from %s to %s",
		len(formative), len(holding), domain.FormatDay(base.BeginDate), domain.FormatDay(base.EndDate))

	result := &SweepResult{Rows: make([]reporting.SweepRow, 0, len(formative)*len(holding))}
	for _, f := range formative {
		for _, h := range holding {
			cfg := base
			cfg.FormativeDays = f
			cfg.HoldingDays = h

			row := reporting.SweepRow{FormativeDays: f, HoldingDays: h}
			r, err := o.runner.Run(ctx, cfg)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				row.Error = err.Error()
				result.Failed++
				o.log("  formative=%d holding=%d failed: %v", f, h, err)
			} else {
				row.ConfigKey = r.ConfigKey
				row.StrategyCumulative = last(r.StrategyCumulative)
				row.BenchmarkCumulative = last(r.BenchmarkCumulative)
				row.SharpeRatio = r.SharpeRatio
				row.MaxDrawdown = r.MaxDrawdown
				result.Completed++
			}
			result.Rows = append(result.Rows, row)
		}
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		a, b := result.Rows[i], result.Rows[j]
		if (a.Error == "") != (b.Error == "") {
			return a.Error == ""
		}
		return a.SharpeRatio > b.SharpeRatio
	})

	o.log("Sweep completed: %d runs, %d failed", result.Completed, result.Failed)
	return result, nil
}

func dedupe(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func last(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf(format, args...)
	}
}
