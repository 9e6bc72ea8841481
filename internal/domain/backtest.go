package domain

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// Portfolio constants.
const (
	// InitialCapital is the starting budget of every run, in currency units.
	InitialCapital = 100000

	// LotSize is the number of shares in one board lot.
	LotSize = 100

	// WinnerQuintile is the divisor applied to the pool size to get the winner count.
	WinnerQuintile = 5
)

// BacktestConfig is the input of one momentum backtest run.
type BacktestConfig struct {
	BeginDate     time.Time `json:"begin_date"`
	EndDate       time.Time `json:"end_date"`
	FormativeDays int       `json:"formative_days"` // formation window length in trading days
	HoldingDays   int       `json:"holding_days"`   // rebalance period in trading days
	StockPool     []string  `json:"stock_pool,omitempty"`
}

// Normalize returns a copy with dates truncated to the day and the pool
// sorted and deduplicated. Two configs that describe the same run
// normalize to equal values.
func (c BacktestConfig) Normalize() BacktestConfig {
	out := c
	out.BeginDate = TruncateDay(c.BeginDate)
	out.EndDate = TruncateDay(c.EndDate)

	if len(c.StockPool) == 0 {
		out.StockPool = nil
		return out
	}

	seen := make(map[string]struct{}, len(c.StockPool))
	pool := make([]string, 0, len(c.StockPool))
	for _, code := range c.StockPool {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		pool = append(pool, code)
	}
	sort.Strings(pool)
	out.StockPool = pool
	return out
}

// ReturnSeries holds daily and cumulative returns aligned with Dates.
// The anchor day of a run has no return and is not part of the series.
type ReturnSeries struct {
	Dates      []time.Time
	Daily      []float64
	Cumulative []float64
}

// Len returns the number of points in the series.
func (s *ReturnSeries) Len() int {
	return len(s.Daily)
}

// Append adds one point to the series.
func (s *ReturnSeries) Append(day time.Time, daily, cumulative float64) {
	s.Dates = append(s.Dates, day)
	s.Daily = append(s.Daily, daily)
	s.Cumulative = append(s.Cumulative, cumulative)
}

// Rebalance records the winner set chosen at one holding-period boundary.
type Rebalance struct {
	Date    string   `json:"date"`
	Winners []string `json:"winners"`
	Lots    int64    `json:"lots"`
}

// BacktestResult is the immutable output of a run.
type BacktestResult struct {
	ConfigKey string `json:"config_key"`

	Dates               []string  `json:"dates"`
	BenchmarkCumulative []float64 `json:"benchmark_cumulative"`
	StrategyCumulative  []float64 `json:"strategy_cumulative"`

	// Frequency maps a rounded return bucket (fixed precision string) to
	// the number of periods that fell into it.
	Frequency map[string]int `json:"frequency"`

	Beta                 float64 `json:"beta"`
	Alpha                float64 `json:"alpha"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	StrategyAnnualYield  float64 `json:"strategy_annual_yield"`
	BenchmarkAnnualYield float64 `json:"benchmark_annual_yield"`

	InitialCapital float64     `json:"initial_capital"`
	FinalValue     float64     `json:"final_value"`
	Rebalances     []Rebalance `json:"rebalances"`
}

// Clone returns a deep copy so callers can never mutate a published result.
func (r *BacktestResult) Clone() *BacktestResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Dates = slices.Clone(r.Dates)
	out.BenchmarkCumulative = slices.Clone(r.BenchmarkCumulative)
	out.StrategyCumulative = slices.Clone(r.StrategyCumulative)
	out.Frequency = maps.Clone(r.Frequency)
	if r.Rebalances != nil {
		out.Rebalances = make([]Rebalance, len(r.Rebalances))
		for i, rb := range r.Rebalances {
			rb.Winners = slices.Clone(rb.Winners)
			out.Rebalances[i] = rb
		}
	}
	return &out
}

// StoredResult is a persisted run.
// Corresponds to backtest_results table in PostgreSQL.
type StoredResult struct {
	ConfigKey string
	Config    BacktestConfig
	Result    *BacktestResult
	CreatedAt time.Time
}
