// Package main serves momentum backtests over HTTP:
// - POST /backtest runs (or serves from cache) one backtest
// - GET /backtest/{key} and GET /runs read persisted runs
// - /health, /metrics and /status for operations
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"momentum-lab/internal/app"
	"momentum-lab/internal/config"
)

func main() {
	// Load .env file if exists
	config.LoadEnvFile(".env")

	configPath := flag.String("config", os.Getenv("MOMENTUM_CONFIG"), "YAML config file (default: ./configs/momentum.yaml, ./momentum.yaml)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	var paths []string
	if *configPath != "" {
		paths = []string{*configPath}
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if cfg.Source != "" {
		logger.Printf("Loaded config from %s", cfg.Source)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, log.New(os.Stdout, "[stores] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	server := &Server{
		engine:  app.NewEngine(cfg, stores, log.New(os.Stdout, "[backtest] ", log.LstdFlags)),
		backend: cfg.Storage.Backend,
		source:  cfg.Source,
		logger:  logger,
		started: time.Now(),
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Starting HTTP server on %s (%s storage)", cfg.Server.Addr, cfg.Storage.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		if err != nil {
			logger.Printf("HTTP server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting requests, then cancel in-flight backtests.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Graceful shutdown timed out: %v", err)
	}
	cancel()

	logger.Println("Shutdown complete")
}
