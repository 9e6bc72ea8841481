// Package market exposes closing prices and the stock universe to the engine.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
)

// ErrNoData is returned when a close is unavailable: suspension, missing
// record, or a lookup that exceeded the per-call timeout.
var ErrNoData = errors.New("no close price data")

// PriceRepository performs point lookups of daily closes.
type PriceRepository struct {
	store   storage.PriceStore
	timeout time.Duration
}

// NewPriceRepository creates a repository over store. A positive timeout
// bounds every lookup; a lookup that times out reports ErrNoData.
func NewPriceRepository(store storage.PriceStore, timeout time.Duration) *PriceRepository {
	return &PriceRepository{store: store, timeout: timeout}
}

// ClosePrice returns the close of code on day.
// Returns ErrNoData when the close is unavailable. Any other error means
// the store itself is unreachable and is fatal for the caller.
func (r *PriceRepository) ClosePrice(ctx context.Context, code string, day time.Time) (float64, error) {
	lookupCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	p, err := r.store.GetClose(lookupCtx, code, day)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		observability.RecordPriceLookup(elapsed, false, false)
		return p.Close, nil
	case errors.Is(err, storage.ErrNotFound):
		observability.RecordPriceLookup(elapsed, true, false)
		return 0, ErrNoData
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		// Only our own deadline fired; the run itself is still alive.
		observability.RecordPriceLookup(elapsed, true, true)
		return 0, ErrNoData
	default:
		return 0, fmt.Errorf("close of %s on %s: %w", code, domain.FormatDay(day), err)
	}
}
