package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"momentum-lab/internal/app"
	"momentum-lab/internal/config"
	"momentum-lab/internal/verification"
)

// replay recomputes persisted runs from the current stores and reports any
// field that no longer matches. Exits 1 when a run diverges.
func main() {
	config.LoadEnvFile(".env")

	configPath := flag.String("config", "", "YAML config file (default: ./configs/momentum.yaml, ./momentum.yaml)")
	key := flag.String("key", "", "Config key of a single run to verify (default: the newest runs)")
	recent := flag.Int("recent", 20, "Number of newest runs to verify when --key is empty")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	var paths []string
	if *configPath != "" {
		paths = []string{*configPath}
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
		cfg.Storage.Backend = config.BackendSQL
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if cfg.Storage.Backend != config.BackendSQL {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required: persisted runs live in PostgreSQL")
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

	verifier := app.NewEngine(cfg, stores, logger).Verifier

	var report *verification.VerificationReport
	if *key != "" {
		result, err := verifier.VerifyRun(ctx, *key)
		if err != nil {
			stores.Close()
			logger.Fatalf("Verify %s: %v", *key, err)
		}
		report = &verification.VerificationReport{TotalRuns: 1, Results: []verification.VerificationResult{*result}}
		if result.Match {
			report.MatchedRuns = 1
		} else {
			report.DivergentRuns = 1
		}
	} else {
		report, err = verifier.VerifyRecent(ctx, *recent)
		if err != nil {
			stores.Close()
			logger.Fatalf("Verify recent runs: %v", err)
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}

	if report.DivergentRuns > 0 {
		stores.Close()
		os.Exit(1)
	}
}

// printReport outputs a human-readable verification report.
func printReport(r *verification.VerificationReport) {
	fmt.Println()
	fmt.Println("=== Replay Verification ===")
	fmt.Printf("Runs:       %d\n", r.TotalRuns)
	fmt.Printf("Matched:    %d\n", r.MatchedRuns)
	fmt.Printf("Divergent:  %d\n", r.DivergentRuns)

	for _, res := range r.Results {
		status := "OK"
		if !res.Match {
			status = "DIVERGED"
		}
		fmt.Println()
		fmt.Printf("%s  %s\n", status, res.ConfigKey)
		fmt.Printf("  Final value: stored %.2f, replayed %.2f\n", res.StoredFinalValue, res.ReplayedFinalValue)
		for _, d := range res.Divergences {
			fmt.Printf("  %-24s expected %v, got %v\n", d.Field, d.Expected, d.Actual)
		}
	}
}
