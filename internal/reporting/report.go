package reporting

import (
	"time"

	"momentum-lab/internal/domain"
)

// Report represents one backtest laid out for rendering.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	ConfigKey   string
	Config      domain.BacktestConfig

	// Summary statistics
	Summary SummarySection

	// Cumulative returns per trading day, anchor first
	Series []SeriesRow

	// Return distribution (sorted by bucket value ASC)
	Histogram []HistogramRow

	// Winner sets per holding period
	Rebalances []domain.Rebalance
}

// SummarySection contains the scalar statistics of a run.
type SummarySection struct {
	InitialCapital       float64
	FinalValue           float64
	StrategyReturn       float64 // last cumulative return, 0 without returns
	BenchmarkReturn      float64
	StrategyAnnualYield  float64
	BenchmarkAnnualYield float64
	Alpha                float64
	Beta                 float64
	SharpeRatio          float64
	MaxDrawdown          float64
}

// SeriesRow is one trading day of the cumulative return chart.
type SeriesRow struct {
	Date      string
	Strategy  float64
	Benchmark float64
	Excess    float64 // strategy - benchmark
}

// HistogramRow is one bucket of the return distribution.
type HistogramRow struct {
	Bucket string
	Count  int
}

// RunRow lists a persisted run.
type RunRow struct {
	ConfigKey     string    `json:"config_key"`
	BeginDate     string    `json:"begin_date"`
	EndDate       string    `json:"end_date"`
	FormativeDays int       `json:"formative_days"`
	HoldingDays   int       `json:"holding_days"`
	PoolSize      int       `json:"pool_size"` // 0 means the default universe
	FinalValue    float64   `json:"final_value"`
	CreatedAt     time.Time `json:"created_at"`
}

// SweepRow summarizes one parameter combination of a sweep.
type SweepRow struct {
	FormativeDays       int     `json:"formative_days"`
	HoldingDays         int     `json:"holding_days"`
	ConfigKey           string  `json:"config_key,omitempty"`
	StrategyCumulative  float64 `json:"strategy_cumulative"`
	BenchmarkCumulative float64 `json:"benchmark_cumulative"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	Error               string  `json:"error,omitempty"`
}
