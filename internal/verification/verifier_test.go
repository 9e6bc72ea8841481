package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage/memory"
)

func sampleResult(key string) *domain.BacktestResult {
	return &domain.BacktestResult{
		ConfigKey:           key,
		Dates:               []string{"2017-03-01", "2017-03-02", "2017-03-03"},
		BenchmarkCumulative: []float64{0.01, 0.015},
		StrategyCumulative:  []float64{0.02, 0.03},
		Frequency:           map[string]int{"0.03": 1},
		Beta:                1.2,
		Alpha:               0.001,
		SharpeRatio:         2.5,
		MaxDrawdown:         0,
		StrategyAnnualYield: 0.4,
		InitialCapital:      domain.InitialCapital,
		FinalValue:          103000,
		Rebalances:          []domain.Rebalance{{Date: "2017-03-01", Winners: []string{"A"}, Lots: 10}},
	}
}

// fakeReplayer returns a prepared result per begin date.
type fakeReplayer struct {
	results map[string]*domain.BacktestResult
	err     error
}

func (f *fakeReplayer) Replay(_ context.Context, cfg domain.BacktestConfig) (*domain.BacktestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[domain.FormatDay(cfg.BeginDate)].Clone(), nil
}

func storeRun(t *testing.T, store *memory.ResultStore, key, begin string, created time.Time) {
	t.Helper()
	day, _ := domain.ParseDay(begin)
	err := store.Insert(context.Background(), &domain.StoredResult{
		ConfigKey: key,
		Config:    domain.BacktestConfig{BeginDate: day, EndDate: day.AddDate(0, 1, 0), FormativeDays: 5, HoldingDays: 5},
		Result:    sampleResult(key),
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestCompareResults_ExactMatch(t *testing.T) {
	if d := CompareResults(sampleResult("k"), sampleResult("k")); len(d) != 0 {
		t.Errorf("expected no divergences, got %v", d)
	}
}

func TestCompareResults_WithinTolerance(t *testing.T) {
	replayed := sampleResult("k")
	replayed.SharpeRatio += FloatTolerance / 2
	replayed.StrategyCumulative[1] -= FloatTolerance / 2

	if d := CompareResults(sampleResult("k"), replayed); len(d) != 0 {
		t.Errorf("expected no divergences within tolerance, got %v", d)
	}
}

func TestCompareResults_Divergences(t *testing.T) {
	replayed := sampleResult("k")
	replayed.StrategyCumulative[1] = 0.031
	replayed.FinalValue = 103100
	replayed.Rebalances[0].Winners = []string{"B"}
	replayed.Frequency = map[string]int{"0.04": 1}

	d := CompareResults(sampleResult("k"), replayed)

	want := []string{"StrategyCumulative[1]", "FinalValue", "Frequency[0.03]", "Rebalances[0]"}
	if len(d) != len(want) {
		t.Fatalf("expected %d divergences, got %d: %v", len(want), len(d), d)
	}
	for i, field := range want {
		if d[i].Field != field {
			t.Errorf("divergence %d: expected %s, got %s", i, field, d[i].Field)
		}
	}
}

func TestCompareResults_LengthMismatch(t *testing.T) {
	replayed := sampleResult("k")
	replayed.BenchmarkCumulative = replayed.BenchmarkCumulative[:1]

	d := CompareResults(sampleResult("k"), replayed)
	if len(d) != 1 || d[0].Field != "BenchmarkCumulative[1]" || d[0].Actual != nil {
		t.Errorf("unexpected divergences: %v", d)
	}
}

func TestVerifyRun(t *testing.T) {
	store := memory.NewResultStore()
	storeRun(t, store, "same", "2017-03-01", time.Unix(100, 0))
	storeRun(t, store, "drift", "2017-04-03", time.Unix(200, 0))

	drifted := sampleResult("drift")
	drifted.FinalValue = 99000
	v := NewReplayVerifier(ReplayVerifierOptions{
		ResultStore: store,
		Replayer: &fakeReplayer{results: map[string]*domain.BacktestResult{
			"2017-03-01": sampleResult("same"),
			"2017-04-03": drifted,
		}},
	})
	ctx := context.Background()

	ok, err := v.VerifyRun(ctx, "same")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok.Match {
		t.Errorf("expected match, got %v", ok.Divergences)
	}

	bad, err := v.VerifyRun(ctx, "drift")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if bad.Match || bad.ReplayedFinalValue != 99000 {
		t.Errorf("expected divergence on final value, got %+v", bad)
	}

	if _, err := v.VerifyRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	report, err := v.VerifyRecent(ctx, 10)
	if err != nil {
		t.Fatalf("verify recent: %v", err)
	}
	if report.TotalRuns != 2 || report.MatchedRuns != 1 || report.DivergentRuns != 1 {
		t.Errorf("unexpected report counts: %+v", report)
	}
	if report.Results[0].ConfigKey != "drift" {
		t.Errorf("expected newest run first, got %s", report.Results[0].ConfigKey)
	}
}

func TestVerifyRecent_ReplayError(t *testing.T) {
	store := memory.NewResultStore()
	storeRun(t, store, "k", "2017-03-01", time.Unix(100, 0))

	v := NewReplayVerifier(ReplayVerifierOptions{
		ResultStore: store,
		Replayer:    &fakeReplayer{err: errors.New("clickhouse down")},
	})

	report, err := v.VerifyRecent(context.Background(), 5)
	if err != nil {
		t.Fatalf("verify recent: %v", err)
	}
	if report.DivergentRuns != 1 || report.Results[0].Divergences[0].Field != "Error" {
		t.Errorf("expected replay error recorded as divergence, got %+v", report)
	}
}
