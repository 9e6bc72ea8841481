package app

import (
	"log"

	"momentum-lab/internal/backtest"
	"momentum-lab/internal/cache"
	"momentum-lab/internal/calendar"
	"momentum-lab/internal/config"
	"momentum-lab/internal/market"
	"momentum-lab/internal/reporting"
	"momentum-lab/internal/verification"
)

// Engine is the assembled backtest service.
type Engine struct {
	Calendar *calendar.Calendar
	Cache    *cache.ResultCache
	Runner   *backtest.Runner
	Reports  *reporting.Generator
	Verifier *verification.ReplayVerifier
}

// NewEngine builds the runner and its collaborators over stores.
func NewEngine(cfg *config.Config, stores *Stores, logger *log.Logger) *Engine {
	cal := calendar.New(stores.TradingDays)
	prices := market.NewPriceRepository(stores.Prices, cfg.Engine.PriceTimeout)
	universe := market.NewUniverse(market.UniverseOptions{
		Prices:     prices,
		PriceStore: stores.Prices,
		StockStore: stores.Stocks,
	})
	results := cache.New(cache.Options{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
	})

	runner := backtest.NewRunner(backtest.RunnerOptions{
		Calendar:    cal,
		Prices:      prices,
		Universe:    universe,
		Cache:       results,
		ResultStore: stores.Results,
		Params:      cfg.Engine.Stats,
		Parallelism: cfg.Engine.Parallelism,
		Logger:      logger,
	})

	return &Engine{
		Calendar: cal,
		Cache:    results,
		Runner:   runner,
		Reports:  reporting.NewGenerator(stores.Results),
		Verifier: verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			ResultStore: stores.Results,
			Replayer:    runner,
		}),
	}
}
