// Package metrics derives risk and return statistics from return series.
// Every function here is pure.
package metrics

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"momentum-lab/internal/domain"
)

// Params configures the statistics.
type Params struct {
	// RiskFreeRate is the annual rate subtracted from the strategy yield in the Sharpe ratio.
	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"`

	// PeriodsPerYear is the number of return periods in one year.
	PeriodsPerYear int `yaml:"periods_per_year" json:"periods_per_year"`

	// AnnualizeAlpha scales the per-period alpha by PeriodsPerYear.
	AnnualizeAlpha bool `yaml:"annualize_alpha" json:"annualize_alpha"`

	// HistogramPrecision is the number of decimals of a frequency bucket.
	HistogramPrecision int `yaml:"histogram_precision" json:"histogram_precision"`

	// GroupByHolding buckets compounded holding-period returns instead of daily ones.
	GroupByHolding bool `yaml:"group_by_holding" json:"group_by_holding"`
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		PeriodsPerYear:     252,
		HistogramPrecision: 2,
		GroupByHolding:     true,
	}
}

// Statistics is the output of Compute.
type Statistics struct {
	Beta                 float64
	Alpha                float64
	SharpeRatio          float64
	MaxDrawdown          float64
	StrategyAnnualYield  float64
	BenchmarkAnnualYield float64
	Frequency            map[string]int
}

// Compute derives the statistics of strategy against benchmark.
// holdingDays sizes the histogram buckets when p.GroupByHolding is set.
func Compute(strategy, benchmark *domain.ReturnSeries, holdingDays int, p Params) Statistics {
	if p.PeriodsPerYear <= 0 {
		p.PeriodsPerYear = DefaultParams().PeriodsPerYear
	}

	s, b := strategy.Daily, benchmark.Daily
	if len(b) < len(s) {
		s = s[:len(b)]
	} else {
		b = b[:len(s)]
	}

	beta := Beta(s, b)
	alpha := Alpha(s, b, beta)
	if p.AnnualizeAlpha {
		alpha *= float64(p.PeriodsPerYear)
	}

	group := 1
	if p.GroupByHolding {
		group = holdingDays
	}

	annual := AnnualYield(strategy.Daily, p.PeriodsPerYear)
	return Statistics{
		Beta:                 beta,
		Alpha:                alpha,
		SharpeRatio:          Sharpe(strategy.Daily, annual, p.RiskFreeRate, p.PeriodsPerYear),
		MaxDrawdown:          MaxDrawdown(strategy.Cumulative),
		StrategyAnnualYield:  annual,
		BenchmarkAnnualYield: AnnualYield(benchmark.Daily, p.PeriodsPerYear),
		Frequency:            Histogram(strategy.Daily, group, p.HistogramPrecision),
	}
}

// Beta returns Cov(s, b) / Var(b) using sample estimators, or 0 when the
// benchmark does not vary.
func Beta(s, b []float64) float64 {
	if len(s) < 2 || len(s) != len(b) {
		return 0
	}
	v := stat.Variance(b, nil)
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	return stat.Covariance(s, b, nil) / v
}

// Alpha returns mean(s) - beta*mean(b) per period.
func Alpha(s, b []float64, beta float64) float64 {
	if len(s) == 0 || len(s) != len(b) {
		return 0
	}
	return stat.Mean(s, nil) - beta*stat.Mean(b, nil)
}

// AnnualYield compounds daily returns and scales the growth to one year:
// (prod(1+r))^(periodsPerYear/n) - 1.
func AnnualYield(daily []float64, periodsPerYear int) float64 {
	n := len(daily)
	if n == 0 {
		return 0
	}
	growth := 1.0
	for _, r := range daily {
		growth *= 1 + r
	}
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, float64(periodsPerYear)/float64(n)) - 1
}

// Sharpe returns (annualYield - riskFree) / (stddev(daily) * sqrt(periodsPerYear)),
// or 0 when daily returns do not vary.
func Sharpe(daily []float64, annualYield, riskFree float64, periodsPerYear int) float64 {
	if len(daily) < 2 {
		return 0
	}
	sd := stat.StdDev(daily, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return (annualYield - riskFree) / (sd * math.Sqrt(float64(periodsPerYear)))
}

// MaxDrawdown returns the largest relative decline from a running peak of
// the cumulative return series: max over i <= j of
// (v[i] - v[j]) / (1 + v[i]). Only points in the series can be peaks. The
// result is never negative.
func MaxDrawdown(cumulative []float64) float64 {
	if len(cumulative) == 0 {
		return 0
	}
	peak := cumulative[0]
	maxDD := 0.0
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if dd := (peak - v) / (1 + peak); dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Histogram counts returns per rounded bucket. Consecutive daily returns
// are compounded in groups of groupDays (1 for daily buckets); a trailing
// short group still counts. Keys are formatted with precision decimals.
func Histogram(daily []float64, groupDays, precision int) map[string]int {
	if groupDays <= 0 {
		groupDays = 1
	}
	if precision < 0 {
		precision = 0
	}

	freq := make(map[string]int)
	for start := 0; start < len(daily); start += groupDays {
		end := min(start+groupDays, len(daily))
		growth := 1.0
		for _, r := range daily[start:end] {
			growth *= 1 + r
		}
		freq[BucketKey(growth-1, precision)]++
	}
	return freq
}

// BucketKey rounds r to precision decimals and formats it with exactly
// that many decimals. Negative zero is folded into zero.
func BucketKey(r float64, precision int) string {
	v := domain.Round(r, precision)
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}
