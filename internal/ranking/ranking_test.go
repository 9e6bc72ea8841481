package ranking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/market"
)

var (
	begin = time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2017, 3, 10, 0, 0, 0, 0, time.UTC)
)

// fakeCloses serves closes from a map keyed by code and day.
type fakeCloses struct {
	mu     sync.Mutex
	closes map[string]map[time.Time]float64
	fail   map[string]error
	calls  atomic.Int64
}

func newFakeCloses() *fakeCloses {
	return &fakeCloses{
		closes: make(map[string]map[time.Time]float64),
		fail:   make(map[string]error),
	}
}

// move registers a code that goes from 100 to 100*(1+ret) over [begin, end].
func (f *fakeCloses) move(code string, ret float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes[code] = map[time.Time]float64{
		begin: 100,
		end:   100 * (1 + ret),
	}
}

func (f *fakeCloses) ClosePrice(_ context.Context, code string, day time.Time) (float64, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[code]; ok {
		return 0, err
	}
	c, ok := f.closes[code][day]
	if !ok {
		return 0, market.ErrNoData
	}
	return c, nil
}

func TestCountRate(t *testing.T) {
	prices := newFakeCloses()
	prices.move("A", 0.1234567)
	r := NewRanker(prices, 1)

	rate, err := r.CountRate(context.Background(), begin, end, "A")
	require.NoError(t, err)
	assert.True(t, rate.Available)
	assert.Equal(t, "A", rate.Code)
	assert.InDelta(t, 0.1234567, rate.Value, 1e-12)
}

func TestCountRate_MissingEndpointIsUnavailable(t *testing.T) {
	prices := newFakeCloses()
	prices.closes["START_ONLY"] = map[time.Time]float64{begin: 10}
	prices.closes["END_ONLY"] = map[time.Time]float64{end: 10}
	r := NewRanker(prices, 1)

	for _, code := range []string{"START_ONLY", "END_ONLY", "UNKNOWN"} {
		rate, err := r.CountRate(context.Background(), begin, end, code)
		require.NoError(t, err, code)
		assert.False(t, rate.Available, code)
	}
}

func TestCountRate_UpstreamErrorIsFatal(t *testing.T) {
	prices := newFakeCloses()
	boom := errors.New("db down")
	prices.fail["A"] = boom

	_, err := NewRanker(prices, 1).CountRate(context.Background(), begin, end, "A")
	assert.ErrorIs(t, err, boom)
}

func TestWinners_Size(t *testing.T) {
	prices := newFakeCloses()
	codes := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	for i, c := range codes {
		prices.move(c, float64(i)/100)
	}
	r := NewRanker(prices, 3)

	tests := []struct {
		poolSize int
		want     int
	}{
		{0, 0},
		{1, 0},
		{4, 0},
		{5, 1},
		{9, 1},
		{10, 2},
		{12, 2},
	}
	for _, tt := range tests {
		winners, err := r.Winners(context.Background(), begin, end, codes[:tt.poolSize])
		require.NoError(t, err)
		assert.Len(t, winners, tt.want, "pool size %d", tt.poolSize)
	}
}

func TestWinners_SmallPoolSkipsLookups(t *testing.T) {
	prices := newFakeCloses()
	winners, err := NewRanker(prices, 1).Winners(context.Background(), begin, end, []string{"A", "B"})
	require.NoError(t, err)
	assert.Empty(t, winners)
	assert.NotNil(t, winners)
	assert.Zero(t, prices.calls.Load())
}

func TestWinners_PicksHighestReturns(t *testing.T) {
	prices := newFakeCloses()
	prices.move("A", 0.05)
	prices.move("B", 0.30)
	prices.move("C", -0.10)
	prices.move("D", 0.25)
	prices.move("E", 0.00)
	prices.move("F", 0.10)
	prices.move("G", 0.01)
	prices.move("H", 0.02)
	prices.move("I", 0.03)
	prices.move("J", 0.04)

	winners, err := NewRanker(prices, 4).Winners(context.Background(), begin, end,
		[]string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D"}, winners)
}

func TestWinners_ReturnsCloserThanDisplayPrecision(t *testing.T) {
	prices := newFakeCloses()
	prices.move("A", 0.12346)
	prices.move("B", 0.12354)
	for _, c := range []string{"C", "D", "E"} {
		prices.move(c, 0)
	}

	winners, err := NewRanker(prices, 2).Winners(context.Background(), begin, end,
		[]string{"A", "B", "C", "D", "E"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, winners)
}

func TestWinners_UnavailableNeverBeatsAvailable(t *testing.T) {
	prices := newFakeCloses()
	// Only one code has data, and it lost money
	prices.move("E", -0.5)

	winners, err := NewRanker(prices, 2).Winners(context.Background(), begin, end,
		[]string{"A", "B", "C", "D", "E"})
	require.NoError(t, err)
	assert.Equal(t, []string{"E"}, winners)
}

func TestWinners_TiesKeepPoolOrder(t *testing.T) {
	prices := newFakeCloses()
	pool := []string{"Z", "Y", "X", "W", "V", "U", "T", "S", "R", "Q"}
	for _, c := range pool {
		prices.move(c, 0.1)
	}

	for range 5 {
		winners, err := NewRanker(prices, 4).Winners(context.Background(), begin, end, pool)
		require.NoError(t, err)
		assert.Equal(t, []string{"Z", "Y"}, winners)
	}
}

func TestWinners_UpstreamError(t *testing.T) {
	prices := newFakeCloses()
	for _, c := range []string{"A", "B", "C", "D", "E"} {
		prices.move(c, 0.1)
	}
	boom := errors.New("db down")
	prices.fail["C"] = boom

	_, err := NewRanker(prices, 2).Winners(context.Background(), begin, end,
		[]string{"A", "B", "C", "D", "E"})
	assert.ErrorIs(t, err, boom)
}

func TestSortRates(t *testing.T) {
	rates := []Rate{
		{Code: "miss1"},
		{Code: "low", Value: -0.2, Available: true},
		{Code: "miss2"},
		{Code: "high", Value: 0.4, Available: true},
		{Code: "mid", Value: 0.1, Available: true},
	}
	SortRates(rates)

	got := make([]string, len(rates))
	for i, r := range rates {
		got[i] = r.Code
	}
	assert.Equal(t, []string{"high", "mid", "low", "miss1", "miss2"}, got)
}

func TestNewRanker_DefaultParallelism(t *testing.T) {
	r := NewRanker(newFakeCloses(), 0)
	assert.Equal(t, DefaultParallelism, r.parallelism)
}
