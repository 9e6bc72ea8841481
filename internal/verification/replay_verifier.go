package verification

import (
	"context"
	"errors"
	"fmt"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// ErrRunNotFound is returned when the config key has no stored run.
var ErrRunNotFound = errors.New("run not found")

// Replayer recomputes a run without consulting caches.
type Replayer interface {
	Replay(ctx context.Context, cfg domain.BacktestConfig) (*domain.BacktestResult, error)
}

// ReplayVerifier implements Verifier by replaying stored configs.
type ReplayVerifier struct {
	results  storage.ResultStore
	replayer Replayer
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	ResultStore storage.ResultStore
	Replayer    Replayer
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		results:  opts.ResultStore,
		replayer: opts.Replayer,
	}
}

var _ Verifier = (*ReplayVerifier)(nil)

// VerifyRun verifies a single run by replaying its config.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, configKey string) (*VerificationResult, error) {
	stored, err := v.results.GetByKey(ctx, configKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return v.verify(ctx, stored)
}

// VerifyRecent verifies up to limit of the newest stored runs. A run that
// cannot be replayed is reported as divergent rather than failing the batch.
func (v *ReplayVerifier) VerifyRecent(ctx context.Context, limit int) (*VerificationReport, error) {
	runs, err := v.results.GetRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.verify(ctx, run)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Results = append(report.Results, VerificationResult{
				ConfigKey:        run.ConfigKey,
				StoredFinalValue: run.Result.FinalValue,
				Divergences: []FieldDivergence{
					{Field: "Error", Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

func (v *ReplayVerifier) verify(ctx context.Context, stored *domain.StoredResult) (*VerificationResult, error) {
	replayed, err := v.replayer.Replay(ctx, stored.Config)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", stored.ConfigKey, err)
	}

	divergences := CompareResults(stored.Result, replayed)
	return &VerificationResult{
		ConfigKey:          stored.ConfigKey,
		Match:              len(divergences) == 0,
		Divergences:        divergences,
		StoredFinalValue:   stored.Result.FinalValue,
		ReplayedFinalValue: replayed.FinalValue,
	}, nil
}
