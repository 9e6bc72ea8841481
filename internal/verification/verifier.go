// Package verification checks that persisted backtests are reproducible:
// a stored run is recomputed from the stores and compared field by field.
package verification

import (
	"context"
	"fmt"
	"math"
	"slices"

	"momentum-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string `json:"field"`
	Expected any    `json:"expected"` // stored value
	Actual   any    `json:"actual"`   // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	ConfigKey          string            `json:"config_key"`
	Match              bool              `json:"match"`
	Divergences        []FieldDivergence `json:"divergences,omitempty"`
	StoredFinalValue   float64           `json:"stored_final_value"`
	ReplayedFinalValue float64           `json:"replayed_final_value"`
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int                  `json:"total_runs"`
	MatchedRuns   int                  `json:"matched_runs"`
	DivergentRuns int                  `json:"divergent_runs"`
	Results       []VerificationResult `json:"results"`
}

// Verifier verifies persisted runs.
type Verifier interface {
	// VerifyRun recomputes one stored run and compares every result field.
	VerifyRun(ctx context.Context, configKey string) (*VerificationResult, error)

	// VerifyRecent verifies up to limit of the newest stored runs.
	VerifyRecent(ctx context.Context, limit int) (*VerificationReport, error)
}

// CompareResults compares two results and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareResults(stored, replayed *domain.BacktestResult) []FieldDivergence {
	var d []FieldDivergence
	add := func(field string, expected, actual any) {
		d = append(d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.ConfigKey != replayed.ConfigKey {
		add("ConfigKey", stored.ConfigKey, replayed.ConfigKey)
	}
	if !slices.Equal(stored.Dates, replayed.Dates) {
		add("Dates", len(stored.Dates), len(replayed.Dates))
	}
	if i := firstDiff(stored.StrategyCumulative, replayed.StrategyCumulative); i >= 0 {
		add(fmt.Sprintf("StrategyCumulative[%d]", i), at(stored.StrategyCumulative, i), at(replayed.StrategyCumulative, i))
	}
	if i := firstDiff(stored.BenchmarkCumulative, replayed.BenchmarkCumulative); i >= 0 {
		add(fmt.Sprintf("BenchmarkCumulative[%d]", i), at(stored.BenchmarkCumulative, i), at(replayed.BenchmarkCumulative, i))
	}

	scalars := []struct {
		field            string
		expected, actual float64
	}{
		{"Beta", stored.Beta, replayed.Beta},
		{"Alpha", stored.Alpha, replayed.Alpha},
		{"SharpeRatio", stored.SharpeRatio, replayed.SharpeRatio},
		{"MaxDrawdown", stored.MaxDrawdown, replayed.MaxDrawdown},
		{"StrategyAnnualYield", stored.StrategyAnnualYield, replayed.StrategyAnnualYield},
		{"BenchmarkAnnualYield", stored.BenchmarkAnnualYield, replayed.BenchmarkAnnualYield},
		{"InitialCapital", stored.InitialCapital, replayed.InitialCapital},
		{"FinalValue", stored.FinalValue, replayed.FinalValue},
	}
	for _, s := range scalars {
		if !floatEquals(s.expected, s.actual) {
			add(s.field, s.expected, s.actual)
		}
	}

	if len(stored.Frequency) != len(replayed.Frequency) {
		add("Frequency", len(stored.Frequency), len(replayed.Frequency))
	} else {
		for bucket, n := range stored.Frequency {
			if replayed.Frequency[bucket] != n {
				add("Frequency["+bucket+"]", n, replayed.Frequency[bucket])
				break
			}
		}
	}

	if len(stored.Rebalances) != len(replayed.Rebalances) {
		add("Rebalances", len(stored.Rebalances), len(replayed.Rebalances))
	} else {
		for i, rb := range stored.Rebalances {
			other := replayed.Rebalances[i]
			if rb.Date != other.Date || rb.Lots != other.Lots || !slices.Equal(rb.Winners, other.Winners) {
				add(fmt.Sprintf("Rebalances[%d]", i), rb, other)
				break
			}
		}
	}

	return d
}

// firstDiff returns the first index where a and b differ beyond the
// tolerance, or -1 when they match.
func firstDiff(a, b []float64) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if !floatEquals(a[i], b[i]) {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}

func at(s []float64, i int) any {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func floatEquals(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= FloatTolerance
}
