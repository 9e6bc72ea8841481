package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"momentum-lab/internal/app"
	"momentum-lab/internal/backtest"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/reporting"
	"momentum-lab/internal/storage"
	"momentum-lab/internal/verification"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
	maxRequestBytes  = 1 << 20
)

// Server serves backtests over HTTP.
type Server struct {
	engine  *app.Engine
	backend string
	source  string
	logger  *log.Logger
	started time.Time
}

// backtestRequest is the body of POST /backtest. Dates are YYYY-MM-DD.
type backtestRequest struct {
	BeginDate     string   `json:"begin_date"`
	EndDate       string   `json:"end_date"`
	FormativeDays int      `json:"formative_days"`
	HoldingDays   int      `json:"holding_days"`
	StockPool     []string `json:"stock_pool"`
}

func (req backtestRequest) config() (domain.BacktestConfig, error) {
	cfg := domain.BacktestConfig{
		FormativeDays: req.FormativeDays,
		HoldingDays:   req.HoldingDays,
		StockPool:     req.StockPool,
	}
	var err error
	if req.BeginDate != "" {
		if cfg.BeginDate, err = domain.ParseDay(req.BeginDate); err != nil {
			return cfg, fmt.Errorf("begin_date: %w", err)
		}
	}
	if req.EndDate != "" {
		if cfg.EndDate, err = domain.ParseDay(req.EndDate); err != nil {
			return cfg, fmt.Errorf("end_date: %w", err)
		}
	}
	return cfg, nil
}

// routes registers every endpoint on a new mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /backtest", s.handleBacktest)
	mux.HandleFunc("GET /backtest/{key}", s.handleGetBacktest)
	mux.HandleFunc("POST /backtest/{key}/verify", s.handleVerify)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("POST /runs/verify", s.handleVerifyRecent)

	return mux
}

// handleBacktest runs one backtest and returns the result as JSON.
// Invalid configs map to 400; an unavailable store maps to 502.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	cfg, err := req.config()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Runner.Run(r.Context(), cfg)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, backtest.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		s.logger.Printf("Backtest cancelled by client")
	default:
		s.logger.Printf("Backtest failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// handleGetBacktest returns a persisted run. ?format=markdown|csv renders
// the report instead of the raw result.
func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	report, err := s.engine.Reports.Generate(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found: "+key)
		return
	}
	if err != nil {
		s.logger.Printf("Load run %s: %v", key, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(reporting.RenderMarkdown(report)))
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte(reporting.RenderCSV(report)))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// handleVerify replays one persisted run and reports any divergence.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	result, err := s.engine.Verifier.VerifyRun(r.Context(), key)
	if errors.Is(err, verification.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found: "+key)
		return
	}
	if err != nil {
		s.logger.Printf("Verify run %s: %v", key, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !result.Match {
		s.logger.Printf("Run %s diverged on replay: %d field(s)", key, len(result.Divergences))
	}
	writeJSON(w, http.StatusOK, result)
}

// handleVerifyRecent replays the newest persisted runs.
func (s *Server) handleVerifyRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	report, err := s.engine.Verifier.VerifyRecent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("Verify runs: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleRuns lists persisted runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := s.engine.Reports.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("List runs: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if strings.ToLower(r.URL.Query().Get("format")) == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(reporting.RenderRunsMarkdown(runs)))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string               `json:"status"`
	Uptime       string               `json:"uptime"`
	Backend      string               `json:"backend"`
	ConfigSource string               `json:"config_source,omitempty"`
	CacheEntries int                  `json:"cache_entries"`
	Runs         backtest.RunnerStats `json:"runs"`
	FirstDay     string               `json:"first_trading_day,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Backend:      s.backend,
		ConfigSource: s.source,
		CacheEntries: s.engine.Cache.Len(),
		Runs:         s.engine.Runner.Stats(),
	}

	first, ok, err := s.engine.Calendar.Earliest(r.Context())
	switch {
	case err != nil:
		s.logger.Printf("Status: %v", err)
		resp.Status = "degraded"
	case ok:
		resp.FirstDay = domain.FormatDay(first)
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseLimit reads ?limit=, writing a 400 when it is out of range.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultRunsLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxRunsLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be within 1..%d", maxRunsLimit))
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
