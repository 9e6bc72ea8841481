package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"momentum-lab/internal/app"
	"momentum-lab/internal/config"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/orchestrator"
	"momentum-lab/internal/reporting"
)

func main() {
	config.LoadEnvFile(".env")

	configPath := flag.String("config", "", "YAML config file (default: ./configs/momentum.yaml, ./momentum.yaml)")

	// Run parameters
	begin := flag.String("begin", "", "First trading day, YYYY-MM-DD (required)")
	end := flag.String("end", "", "Last trading day, YYYY-MM-DD (required)")
	formative := flag.Int("formative", 20, "Formation window in trading days")
	holding := flag.Int("holding", 5, "Holding period in trading days")
	pool := flag.String("pool", "", "Comma-separated stock codes (default: every listed stock)")

	// Sweep (either flag switches to a parameter sweep)
	sweepFormative := flag.String("sweep-formative", "", "Comma-separated formation windows to sweep (default: --formative)")
	sweepHolding := flag.String("sweep-holding", "", "Comma-separated holding periods to sweep (default: --holding)")

	// Storage (override config)
	closesCSV := flag.String("closes", "", "CSV of daily closes: code,date,close")
	calendarCSV := flag.String("calendar", "", "CSV of trading days (default: derived from closes)")
	stocksCSV := flag.String("stocks", "", "CSV of listed stocks")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (selects the sql backend)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")

	// Output
	format := flag.String("format", "markdown", "Output format: json, markdown, csv, histogram-csv")
	output := flag.String("output", "", "Write output to file instead of stdout")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *begin == "" || *end == "" {
		logger.Fatal("--begin and --end are required")
	}
	beginDate, err := domain.ParseDay(*begin)
	if err != nil {
		logger.Fatalf("Invalid --begin: %v", err)
	}
	endDate, err := domain.ParseDay(*end)
	if err != nil {
		logger.Fatalf("Invalid --end: %v", err)
	}

	*format = strings.ToLower(*format)
	switch *format {
	case "json", "markdown", "csv", "histogram-csv":
	default:
		logger.Fatalf("Invalid format: %s. Must be json, markdown, csv or histogram-csv", *format)
	}

	var paths []string
	if *configPath != "" {
		paths = []string{*configPath}
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	applyFlags(cfg, *closesCSV, *calendarCSV, *stocksCSV, *postgresDSN, *clickhouseDSN, *migrate)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if cfg.Storage.Backend == config.BackendMemory && cfg.Storage.ClosesCSV == "" {
		logger.Fatal("--closes is required with in-memory storage (or set --postgres-dsn and --clickhouse-dsn)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Open stores: %v", err)
	}
	defer stores.Close()

	engine := app.NewEngine(cfg, stores, logger)

	run := domain.BacktestConfig{
		BeginDate:     beginDate,
		EndDate:       endDate,
		FormativeDays: *formative,
		HoldingDays:   *holding,
		StockPool:     config.SplitCSV(*pool),
	}

	var rendered string
	if *sweepFormative != "" || *sweepHolding != "" {
		formatives, err := parseInts(*sweepFormative, *formative)
		if err != nil {
			stores.Close()
			logger.Fatalf("Invalid --sweep-formative: %v", err)
		}
		holdings, err := parseInts(*sweepHolding, *holding)
		if err != nil {
			stores.Close()
			logger.Fatalf("Invalid --sweep-holding: %v", err)
		}

		sweep, err := orchestrator.New(orchestrator.Options{
			Runner:  engine.Runner,
			Logger:  logger,
			Verbose: true,
		}).Sweep(ctx, run, formatives, holdings)
		if err != nil {
			stores.Close()
			logger.Fatalf("Sweep failed: %v", err)
		}
		rendered, err = renderSweep(*format, sweep)
		if err != nil {
			stores.Close()
			logger.Fatalf("Render %s: %v", *format, err)
		}
	} else {
		logger.Printf("Running backtest: %s to %s formative=%d holding=%d pool=%d",
			*begin, *end, *formative, *holding, len(run.StockPool))

		result, err := engine.Runner.Run(ctx, run)
		if err != nil {
			stores.Close()
			logger.Fatalf("Backtest failed: %v", err)
		}

		rendered, err = render(*format, run, result)
		if err != nil {
			stores.Close()
			logger.Fatalf("Render %s: %v", *format, err)
		}
	}

	if *output == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*output, []byte(rendered), 0o644); err != nil {
		stores.Close()
		logger.Fatalf("Write %s: %v", *output, err)
	}
	logger.Printf("Wrote %s (%s)", *output, *format)
}

// applyFlags overrides storage settings with non-empty flags. A postgres
// DSN on the command line selects the sql backend.
func applyFlags(cfg *config.Config, closes, calendar, stocks, postgresDSN, clickhouseDSN string, migrate bool) {
	if closes != "" {
		cfg.Storage.ClosesCSV = closes
	}
	if calendar != "" {
		cfg.Storage.CalendarCSV = calendar
	}
	if stocks != "" {
		cfg.Storage.StocksCSV = stocks
	}
	if postgresDSN != "" {
		cfg.Storage.PostgresDSN = postgresDSN
		cfg.Storage.Backend = config.BackendSQL
	}
	if clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = clickhouseDSN
	}
	if migrate {
		cfg.Storage.Migrate = true
	}
}

func render(format string, cfg domain.BacktestConfig, result *domain.BacktestResult) (string, error) {
	if format == "json" {
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	}

	report := reporting.NewGenerator(nil).FromResult(cfg.Normalize(), result)
	switch format {
	case "csv":
		return reporting.RenderCSV(report), nil
	case "histogram-csv":
		return reporting.RenderHistogramCSV(report), nil
	default:
		return reporting.RenderMarkdown(report), nil
	}
}

func renderSweep(format string, sweep *orchestrator.SweepResult) (string, error) {
	if format != "json" {
		return reporting.RenderSweepMarkdown(sweep.Rows), nil
	}
	b, err := json.MarshalIndent(sweep.Rows, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// parseInts parses a comma-separated list, falling back to def when empty.
func parseInts(s string, def int) ([]int, error) {
	parts := config.SplitCSV(s)
	if len(parts) == 0 {
		return []int{def}, nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", p)
		}
		out = append(out, n)
	}
	return out, nil
}
