package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lab/internal/app"
	"momentum-lab/internal/config"
	"momentum-lab/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	stores := app.NewMemoryStores()
	var days []time.Time
	var points []*domain.PricePoint
	d := time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC)
	for n := 0; n < 30; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
		for i, code := range []string{"A", "B", "C", "D", "E"} {
			points = append(points, &domain.PricePoint{
				Code:  code,
				Day:   d,
				Close: 10 * math.Pow(1+0.005*float64(i), float64(n)),
			})
		}
		n++
	}
	require.NoError(t, stores.TradingDays.InsertBulk(ctx, days))
	require.NoError(t, stores.Prices.InsertBulk(ctx, points))

	cfg := config.Default()
	s := &Server{
		engine:  app.NewEngine(&cfg, stores, log.New(io.Discard, "", 0)),
		backend: cfg.Storage.Backend,
		logger:  log.New(io.Discard, "", 0),
		started: time.Now(),
	}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func postBacktest(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/backtest", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBacktestEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postBacktest(t, ts, `{"begin_date":"2017-03-20","end_date":"2017-04-07","formative_days":5,"holding_days":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.BacktestResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.ConfigKey)
	assert.Len(t, result.StrategyCumulative, len(result.Dates)-1)
	require.NotEmpty(t, result.Rebalances)
	assert.Equal(t, []string{"E"}, result.Rebalances[0].Winners)

	get, err := http.Get(ts.URL + "/backtest/" + result.ConfigKey + "?format=markdown")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
	body, err := io.ReadAll(get.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), result.ConfigKey)

	runs, err := http.Get(ts.URL + "/runs")
	require.NoError(t, err)
	defer runs.Body.Close()
	var rows []map[string]any
	require.NoError(t, json.NewDecoder(runs.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, result.ConfigKey, rows[0]["config_key"])
}

func TestVerifyEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := postBacktest(t, ts, `{"begin_date":"2017-03-20","end_date":"2017-04-07","formative_days":5,"holding_days":5}`)
	var result domain.BacktestResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	verify, err := http.Post(ts.URL+"/backtest/"+result.ConfigKey+"/verify", "application/json", nil)
	require.NoError(t, err)
	defer verify.Body.Close()
	require.Equal(t, http.StatusOK, verify.StatusCode)
	var check map[string]any
	require.NoError(t, json.NewDecoder(verify.Body).Decode(&check))
	assert.Equal(t, true, check["match"])

	missing, err := http.Post(ts.URL+"/backtest/missing/verify", "application/json", nil)
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	all, err := http.Post(ts.URL+"/runs/verify?limit=5", "application/json", nil)
	require.NoError(t, err)
	defer all.Body.Close()
	var report map[string]any
	require.NoError(t, json.NewDecoder(all.Body).Decode(&report))
	assert.Equal(t, float64(1), report["matched_runs"])
}

func TestBacktestEndpoint_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"begin_date":`, http.StatusBadRequest},
		{"unknown field", `{"start":"2017-03-20"}`, http.StatusBadRequest},
		{"bad date", `{"begin_date":"20-03-2017","end_date":"2017-04-07","formative_days":5,"holding_days":5}`, http.StatusBadRequest},
		{"reversed range", `{"begin_date":"2017-04-07","end_date":"2017-03-20","formative_days":5,"holding_days":5}`, http.StatusBadRequest},
		{"zero holding", `{"begin_date":"2017-03-20","end_date":"2017-04-07","formative_days":5,"holding_days":0}`, http.StatusBadRequest},
		{"no trading days", `{"begin_date":"2018-01-01","end_date":"2018-02-01","formative_days":5,"holding_days":5}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postBacktest(t, ts, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetBacktest_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/backtest/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRuns_InvalidLimit(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/runs?limit=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusAndHealth(t *testing.T) {
	ts := newTestServer(t)

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	postBacktest(t, ts, `{"begin_date":"2017-03-20","end_date":"2017-04-07","formative_days":5,"holding_days":5}`)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "memory", status.Backend)
	assert.Equal(t, 1, status.CacheEntries)
	assert.Equal(t, int64(1), status.Runs.Runs)
	assert.Equal(t, "2017-03-01", status.FirstDay)
}
