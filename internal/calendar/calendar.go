// Package calendar resolves trading-day arithmetic over a trading day store.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// Predicate filters trading days.
type Predicate func(day time.Time) bool

// All accepts every trading day.
func All(time.Time) bool { return true }

// Calendar answers "N trading days before", "last session before" and range queries.
type Calendar struct {
	store storage.TradingDayStore
}

// New creates a calendar backed by store.
func New(store storage.TradingDayStore) *Calendar {
	return &Calendar{store: store}
}

// TradingDaysBetween returns trading days within [begin, end] (both inclusive)
// accepted by pred, ascending and deduplicated. A nil pred accepts all days.
func (c *Calendar) TradingDaysBetween(ctx context.Context, begin, end time.Time, pred Predicate) ([]time.Time, error) {
	days, err := c.store.GetByRange(ctx, domain.TruncateDay(begin), domain.TruncateDay(end))
	if err != nil {
		return nil, fmt.Errorf("load trading days: %w", err)
	}
	if pred == nil {
		return days, nil
	}

	result := days[:0:0]
	for _, d := range days {
		if pred(d) {
			result = append(result, d)
		}
	}
	return result, nil
}

// ShiftBack returns the trading day n sessions before date.
// With short history it falls back to the earliest known trading day, and
// when no day precedes date at all it returns date itself.
func (c *Calendar) ShiftBack(ctx context.Context, date time.Time, n int) (time.Time, error) {
	date = domain.TruncateDay(date)
	if n <= 0 {
		return date, nil
	}

	days, err := c.store.GetBefore(ctx, date, n)
	if err != nil {
		return time.Time{}, fmt.Errorf("shift back %d trading days: %w", n, err)
	}
	if len(days) == 0 {
		return date, nil
	}
	// days is DESC, so the last element is the furthest back available
	return days[len(days)-1], nil
}

// LastValidBefore returns the last trading day strictly before date,
// or date itself when the calendar has nothing earlier.
func (c *Calendar) LastValidBefore(ctx context.Context, date time.Time) (time.Time, error) {
	date = domain.TruncateDay(date)

	days, err := c.store.GetBefore(ctx, date, 1)
	if err != nil {
		return time.Time{}, fmt.Errorf("last trading day before %s: %w", domain.FormatDay(date), err)
	}
	if len(days) == 0 {
		return date, nil
	}
	return days[0], nil
}

// FormationWindow returns the [begin, end] window of n sessions that closes
// on the last trading day before date.
func (c *Calendar) FormationWindow(ctx context.Context, date time.Time, n int) (begin, end time.Time, err error) {
	begin, err = c.ShiftBack(ctx, date, n)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = c.LastValidBefore(ctx, date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return begin, end, nil
}

// Earliest returns the first trading day known to the calendar.
func (c *Calendar) Earliest(ctx context.Context) (time.Time, bool, error) {
	d, err := c.store.GetFirst(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("first trading day: %w", err)
	}
	return d, true, nil
}
