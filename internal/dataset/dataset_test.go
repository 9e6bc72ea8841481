package dataset

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
	"momentum-lab/internal/storage/memory"
)

func day(s string) time.Time {
	d, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLoadCloses(t *testing.T) {
	in := "Date,Code,Close,Volume\n" +
		"2017-03-01,600000,16.12,1000\n" +
		"2017-03-01, 000001 ,9.5,2000\n" +
		"\n" +
		"2017-03-02,600000,0,0\n" +
		"2017-03-02,000001,9.61,1500\n"

	points, err := LoadCloses(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, &domain.PricePoint{Code: "600000", Day: day("2017-03-01"), Close: 16.12}, points[0])
	assert.Equal(t, "000001", points[1].Code)
	assert.Equal(t, day("2017-03-02"), points[2].Day)
}

func TestLoadCloses_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "missing required column"},
		{"no close column", "code,date\nA,2017-03-01\n", "missing required column: close"},
		{"bad date", "code,date,close\nA,03/01/2017,1\n", "line 2: bad date"},
		{"bad close", "code,date,close\nA,2017-03-01,x\n", "line 2: bad close"},
		{"empty code", "code,date,close\nA,2017-03-01,1\n,2017-03-01,1\n", "line 3: empty code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCloses(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCalendar(t *testing.T) {
	in := "date\n2017-03-02\n2017-03-01\n2017-03-02\n2017-03-03\n"

	days, err := LoadCalendar(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2017-03-01"), day("2017-03-02"), day("2017-03-03")}, days)
}

func TestDeriveCalendar(t *testing.T) {
	points := []*domain.PricePoint{
		{Code: "A", Day: day("2017-03-02"), Close: 1},
		{Code: "B", Day: day("2017-03-01"), Close: 1},
		{Code: "A", Day: day("2017-03-01"), Close: 1},
	}
	assert.Equal(t, []time.Time{day("2017-03-01"), day("2017-03-02")}, DeriveCalendar(points))
	assert.Empty(t, DeriveCalendar(nil))
}

func TestLoadStocks(t *testing.T) {
	in := "code,name,market\n600000,Pudong Bank,sh\n000001,Ping An Bank,sz\n"

	stocks, err := LoadStocks(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, &domain.Stock{Code: "600000", Name: "Pudong Bank", Market: "sh"}, stocks[0])

	stocks, err = LoadStocks(strings.NewReader("code\n600000\n"))
	require.NoError(t, err)
	assert.Equal(t, []*domain.Stock{{Code: "600000"}}, stocks)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	prices := memory.NewPriceStore()
	days := memory.NewTradingDayStore()
	stocks := memory.NewStockStore()
	require.NoError(t, stocks.Insert(ctx, &domain.Stock{Code: "A"}))

	stats, err := Seed(ctx, SeedOptions{
		Closes:          strings.NewReader("code,date,close\nA,2017-03-01,10\nB,2017-03-02,20\n"),
		Stocks:          strings.NewReader("code\nA\nB\n"),
		PriceStore:      prices,
		TradingDayStore: days,
		StockStore:      stocks,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Closes)
	assert.Equal(t, 2, stats.TradingDays)
	assert.Equal(t, 1, stats.Stocks)
	assert.Equal(t, "2 closes, 2 trading days (2017-03-01 to 2017-03-02), 1 stocks", stats.Summary())

	got, err := days.GetByRange(ctx, day("2017-01-01"), day("2017-12-31"))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	p, err := prices.GetClose(ctx, "B", day("2017-03-02"))
	require.NoError(t, err)
	assert.Equal(t, 20.0, p.Close)
}

func TestSeed_ExplicitCalendar(t *testing.T) {
	ctx := context.Background()
	days := memory.NewTradingDayStore()

	stats, err := Seed(ctx, SeedOptions{
		Closes:          strings.NewReader("code,date,close\nA,2017-03-01,10\n"),
		Calendar:        strings.NewReader("date\n2017-03-01\n2017-03-02\n2017-03-03\n"),
		PriceStore:      memory.NewPriceStore(),
		TradingDayStore: days,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TradingDays)
}

func TestSeed_RequiresCloses(t *testing.T) {
	_, err := Seed(context.Background(), SeedOptions{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
