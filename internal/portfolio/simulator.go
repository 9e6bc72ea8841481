// Package portfolio simulates the periodically rebalanced momentum portfolio.
//
// Money is tracked in whole currency units with shopspring/decimal. Each
// holding period the budget is split into whole lots of the winner basket;
// the remainder stays in cash.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
)

// Calendar resolves formation windows.
type Calendar interface {
	FormationWindow(ctx context.Context, date time.Time, n int) (begin, end time.Time, err error)
}

// Selector picks the winner set of a pool over a formation window.
type Selector interface {
	Winners(ctx context.Context, begin, end time.Time, pool []string) ([]string, error)
}

// Pricer values a basket. ok is false when no member has data on day.
type Pricer interface {
	AverageClose(ctx context.Context, codes []string, day time.Time) (avg float64, ok bool, err error)
}

// Outcome is the result of one simulation.
type Outcome struct {
	Series     *domain.ReturnSeries
	Rebalances []domain.Rebalance
	FinalValue decimal.Decimal
}

// Simulator runs the INITIALIZE, HOLD and REBALANCE loop.
type Simulator struct {
	calendar Calendar
	selector Selector
	pricer   Pricer
}

// SimulatorOptions contains configuration for creating a Simulator.
type SimulatorOptions struct {
	Calendar Calendar
	Selector Selector
	Pricer   Pricer
}

// NewSimulator creates a portfolio simulator.
func NewSimulator(opts SimulatorOptions) *Simulator {
	return &Simulator{
		calendar: opts.Calendar,
		selector: opts.Selector,
		pricer:   opts.Pricer,
	}
}

var (
	initialCapital = decimal.NewFromInt(domain.InitialCapital)
	lotShares      = decimal.NewFromInt(domain.LotSize)
)

// state is the portfolio between two trading days.
type state struct {
	winners  []string
	lots     int64
	cash     decimal.Decimal
	lotPrice decimal.Decimal // last successfully priced lot
}

// Run simulates pool over days. days[0] is the anchor and produces no
// return; the series has exactly len(days)-1 points.
// formativeDays and holdingDays must be positive.
func (s *Simulator) Run(ctx context.Context, days []time.Time, pool []string, formativeDays, holdingDays int) (*Outcome, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("simulate: no trading days")
	}
	if formativeDays <= 0 || holdingDays <= 0 {
		return nil, fmt.Errorf("simulate: formative %d and holding %d days must be positive", formativeDays, holdingDays)
	}

	out := &Outcome{Series: &domain.ReturnSeries{}}

	// INITIALIZE
	st := &state{}
	anchor := days[0]
	if err := s.rebalance(ctx, st, out, anchor, anchor, pool, formativeDays, initialCapital); err != nil {
		return nil, err
	}
	prev := initialCapital

	for i := 1; i < len(days); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := days[i]

		// REBALANCE at period boundaries, priced on the previous session
		if i%holdingDays == 0 {
			if err := s.rebalance(ctx, st, out, day, days[i-1], pool, formativeDays, prev); err != nil {
				return nil, err
			}
		}

		// HOLD
		value, err := s.value(ctx, st, day)
		if err != nil {
			return nil, err
		}
		out.Series.Append(day, returnOf(value, prev), returnOf(value, initialCapital))
		prev = value
	}

	out.FinalValue = prev
	return out, nil
}

// rebalance selects winners for the period starting on day and converts
// money into whole lots at the basket price on priceDay.
func (s *Simulator) rebalance(ctx context.Context, st *state, out *Outcome, day, priceDay time.Time, pool []string, formativeDays int, money decimal.Decimal) error {
	begin, end, err := s.calendar.FormationWindow(ctx, day, formativeDays)
	if err != nil {
		return fmt.Errorf("formation window for %s: %w", domain.FormatDay(day), err)
	}

	winners, err := s.selector.Winners(ctx, begin, end, pool)
	if err != nil {
		return fmt.Errorf("rank winners for %s: %w", domain.FormatDay(day), err)
	}

	st.winners = winners
	st.lots = 0
	st.cash = money

	lotPrice, ok, err := s.lotPrice(ctx, winners, priceDay)
	if err != nil {
		return err
	}
	if ok && lotPrice.IsPositive() {
		lots, rest := money.QuoRem(lotPrice, 0)
		st.lots = lots.IntPart()
		st.cash = rest
		st.lotPrice = lotPrice
	}

	out.Rebalances = append(out.Rebalances, domain.Rebalance{
		Date:    domain.FormatDay(day),
		Winners: winners,
		Lots:    st.lots,
	})
	observability.RecordRebalance()
	return nil
}

// value marks the portfolio to market on day. When no winner has data the
// last known lot price is carried forward.
func (s *Simulator) value(ctx context.Context, st *state, day time.Time) (decimal.Decimal, error) {
	if st.lots == 0 {
		return st.cash, nil
	}

	lotPrice, ok, err := s.lotPrice(ctx, st.winners, day)
	if err != nil {
		return decimal.Zero, err
	}
	if ok {
		st.lotPrice = lotPrice
	}
	return st.lotPrice.Mul(decimal.NewFromInt(st.lots)).Add(st.cash), nil
}

// lotPrice returns trunc(LotSize * average close) of winners on day.
// The product is exact decimal arithmetic on the shortest decimal form of
// the average, so 0.29 yields 29 rather than the 28 of float 100*0.29.
func (s *Simulator) lotPrice(ctx context.Context, winners []string, day time.Time) (decimal.Decimal, bool, error) {
	if len(winners) == 0 {
		return decimal.Zero, false, nil
	}
	avg, ok, err := s.pricer.AverageClose(ctx, winners, day)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("price winners on %s: %w", domain.FormatDay(day), err)
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	return decimal.NewFromFloat(avg).Mul(lotShares).Truncate(0), true, nil
}

// returnOf is (value - base) / base rounded to domain.ReturnPrecision.
func returnOf(value, base decimal.Decimal) float64 {
	if base.IsZero() {
		return 0
	}
	r, _ := value.Sub(base).Div(base).Round(domain.ReturnPrecision).Float64()
	return r
}
