package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage/memory"
)

func day(s string) time.Time {
	d, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newCalendar seeds a calendar with weekdays of March 2017 (1st is a Wednesday).
func newCalendar(t *testing.T) *Calendar {
	t.Helper()
	store := memory.NewTradingDayStore()
	var days []time.Time
	for d := day("2017-03-01"); d.Month() == time.March; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	require.NoError(t, store.InsertBulk(context.Background(), days))
	return New(store)
}

func TestTradingDaysBetween_InclusiveSkipsWeekends(t *testing.T) {
	cal := newCalendar(t)

	days, err := cal.TradingDaysBetween(context.Background(), day("2017-03-03"), day("2017-03-07"), All)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, day("2017-03-03"), days[0])
	assert.Equal(t, day("2017-03-06"), days[1])
	assert.Equal(t, day("2017-03-07"), days[2])
}

func TestTradingDaysBetween_Predicate(t *testing.T) {
	cal := newCalendar(t)

	mondays := func(d time.Time) bool { return d.Weekday() == time.Monday }
	days, err := cal.TradingDaysBetween(context.Background(), day("2017-03-01"), day("2017-03-31"), mondays)
	require.NoError(t, err)
	assert.Len(t, days, 4)
	for _, d := range days {
		assert.Equal(t, time.Monday, d.Weekday())
	}
}

func TestShiftBack(t *testing.T) {
	cal := newCalendar(t)
	ctx := context.Background()

	got, err := cal.ShiftBack(ctx, day("2017-03-08"), 5)
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-01"), got)

	// Calendar days that are not sessions still shift by sessions
	got, err = cal.ShiftBack(ctx, day("2017-03-12"), 1)
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-10"), got)
}

func TestShiftBack_ShortHistoryFallsBackToEarliest(t *testing.T) {
	cal := newCalendar(t)

	got, err := cal.ShiftBack(context.Background(), day("2017-03-03"), 30)
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-01"), got)

	got, err = cal.ShiftBack(context.Background(), day("2017-03-01"), 3)
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-01"), got, "no earlier day: returns date itself")
}

func TestLastValidBefore(t *testing.T) {
	cal := newCalendar(t)
	ctx := context.Background()

	got, err := cal.LastValidBefore(ctx, day("2017-03-06"))
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-03"), got, "Monday -> previous Friday")

	got, err = cal.LastValidBefore(ctx, day("2017-03-01"))
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-01"), got)
}

func TestFormationWindow(t *testing.T) {
	cal := newCalendar(t)

	begin, end, err := cal.FormationWindow(context.Background(), day("2017-03-13"), 5)
	require.NoError(t, err)
	assert.Equal(t, day("2017-03-06"), begin)
	assert.Equal(t, day("2017-03-10"), end)
}

func TestEarliest(t *testing.T) {
	ctx := context.Background()

	_, ok, err := New(memory.NewTradingDayStore()).Earliest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	first, ok, err := newCalendar(t).Earliest(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day("2017-03-01"), first)
}
