package backtest

import (
	"slices"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/metrics"
)

// Assemble packages a run into a result. days is the full trading-day range
// including the anchor, so every return series has len(days)-1 points.
func Assemble(days []time.Time, strategy, benchmark *domain.ReturnSeries, stats metrics.Statistics) *domain.BacktestResult {
	sorted := slices.Clone(days)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })

	dates := make([]string, len(sorted))
	for i, d := range sorted {
		dates[i] = domain.FormatDay(d)
	}

	return &domain.BacktestResult{
		Dates:                dates,
		BenchmarkCumulative:  slices.Clone(benchmark.Cumulative),
		StrategyCumulative:   slices.Clone(strategy.Cumulative),
		Frequency:            stats.Frequency,
		Beta:                 stats.Beta,
		Alpha:                stats.Alpha,
		SharpeRatio:          stats.SharpeRatio,
		MaxDrawdown:          stats.MaxDrawdown,
		StrategyAnnualYield:  stats.StrategyAnnualYield,
		BenchmarkAnnualYield: stats.BenchmarkAnnualYield,
	}
}
