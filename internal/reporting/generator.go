package reporting

import (
	"context"
	"sort"
	"strconv"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Generator produces reports from results.
type Generator struct {
	resultStore storage.ResultStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. resultStore may be nil when
// only FromResult is used.
func NewGenerator(resultStore storage.ResultStore) *Generator {
	return &Generator{
		resultStore: resultStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a persisted run by config key and builds its report.
// Returns storage.ErrNotFound if the run does not exist.
func (g *Generator) Generate(ctx context.Context, configKey string) (*Report, error) {
	stored, err := g.resultStore.GetByKey(ctx, configKey)
	if err != nil {
		return nil, err
	}
	return g.FromResult(stored.Config, stored.Result), nil
}

// Recent lists up to limit persisted runs, newest first.
func (g *Generator) Recent(ctx context.Context, limit int) ([]RunRow, error) {
	stored, err := g.resultStore.GetRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]RunRow, len(stored))
	for i, s := range stored {
		rows[i] = RunRow{
			ConfigKey:     s.ConfigKey,
			BeginDate:     domain.FormatDay(s.Config.BeginDate),
			EndDate:       domain.FormatDay(s.Config.EndDate),
			FormativeDays: s.Config.FormativeDays,
			HoldingDays:   s.Config.HoldingDays,
			PoolSize:      len(s.Config.StockPool),
			CreatedAt:     s.CreatedAt,
		}
		if s.Result != nil {
			rows[i].FinalValue = s.Result.FinalValue
		}
	}
	return rows, nil
}

// FromResult builds a report for a computed result.
func (g *Generator) FromResult(cfg domain.BacktestConfig, r *domain.BacktestResult) *Report {
	return &Report{
		GeneratedAt: g.now(),
		ConfigKey:   r.ConfigKey,
		Config:      cfg,
		Summary:     summarize(r),
		Series:      seriesRows(r),
		Histogram:   histogramRows(r.Frequency),
		Rebalances:  r.Rebalances,
	}
}

func summarize(r *domain.BacktestResult) SummarySection {
	s := SummarySection{
		InitialCapital:       r.InitialCapital,
		FinalValue:           r.FinalValue,
		StrategyAnnualYield:  r.StrategyAnnualYield,
		BenchmarkAnnualYield: r.BenchmarkAnnualYield,
		Alpha:                r.Alpha,
		Beta:                 r.Beta,
		SharpeRatio:          r.SharpeRatio,
		MaxDrawdown:          r.MaxDrawdown,
	}
	if n := len(r.StrategyCumulative); n > 0 {
		s.StrategyReturn = r.StrategyCumulative[n-1]
	}
	if n := len(r.BenchmarkCumulative); n > 0 {
		s.BenchmarkReturn = r.BenchmarkCumulative[n-1]
	}
	return s
}

// seriesRows aligns cumulative returns with dates. The anchor day has no
// return and is reported as 0.
func seriesRows(r *domain.BacktestResult) []SeriesRow {
	rows := make([]SeriesRow, 0, len(r.Dates))
	for i, d := range r.Dates {
		row := SeriesRow{Date: d}
		if i > 0 {
			if i-1 < len(r.StrategyCumulative) {
				row.Strategy = r.StrategyCumulative[i-1]
			}
			if i-1 < len(r.BenchmarkCumulative) {
				row.Benchmark = r.BenchmarkCumulative[i-1]
			}
		}
		row.Excess = domain.Round(row.Strategy-row.Benchmark, domain.ReturnPrecision)
		rows = append(rows, row)
	}
	return rows
}

// histogramRows sorts buckets by numeric value ASC.
func histogramRows(freq map[string]int) []HistogramRow {
	rows := make([]HistogramRow, 0, len(freq))
	for bucket, count := range freq {
		rows = append(rows, HistogramRow{Bucket: bucket, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, errA := strconv.ParseFloat(rows[i].Bucket, 64)
		b, errB := strconv.ParseFloat(rows[j].Bucket, 64)
		if errA != nil || errB != nil || a == b {
			return rows[i].Bucket < rows[j].Bucket
		}
		return a < b
	})
	return rows
}
