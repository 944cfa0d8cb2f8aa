// Package app assembles the services shared by the api and cron-worker binaries.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/buyback-backend/internal/ledger"
	"github.com/angelmondragon/buyback-backend/internal/pricefeed"
	"github.com/angelmondragon/buyback-backend/internal/pricing"
	"github.com/angelmondragon/buyback-backend/internal/quotes"
	"github.com/angelmondragon/buyback-backend/pkg/config"
	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/metrics"
)

// Services is the domain layer built from config.
type Services struct {
	Engine        *pricing.Engine
	Ledger        ledger.Service
	PriceFeed     pricefeed.Service
	Quotes        quotes.Service
	LedgerMetrics *metrics.LedgerMetrics
}

// Params are the infrastructure handles the services are built on.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Cache      pricefeed.Cache
	Registerer prometheus.Registerer
}

// NewEngine loads the payout policy file when configured, else the built-in table.
func NewEngine(cfg config.PricingConfig) (*pricing.Engine, error) {
	policy := pricing.DefaultPolicy()
	if cfg.PolicyFile != "" {
		loaded, err := pricing.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}
	return pricing.NewEngine(policy)
}

func Build(p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and db are required")
	}
	cfg := p.Config

	engine, err := NewEngine(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing engine: %w", err)
	}

	ledgerMetrics := metrics.NewLedgerMetrics(p.Registerer)
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Store:          p.DB,
		Logger:         p.Logger,
		Metrics:        ledgerMetrics,
		MaxAttempts:    cfg.Ledger.MaxAttempts,
		RetryBaseDelay: cfg.Ledger.RetryBaseDelay,
		RetryMaxDelay:  cfg.Ledger.RetryMaxDelay,
		LockTimeout:    cfg.Ledger.LockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	feedService, err := pricefeed.NewService(pricefeed.ServiceParams{
		Repository: pricefeed.NewRepository(p.DB.DB()),
		Cache:      p.Cache,
		CacheTTL:   cfg.PriceFeed.CacheTTL,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("price feed service: %w", err)
	}

	quoteService, err := quotes.NewService(quotes.ServiceParams{
		Engine:      engine,
		Snapshots:   feedService,
		Stock:       ledgerService,
		Logger:      p.Logger,
		BatchLimit:  cfg.Quotes.BatchLimit,
		Concurrency: cfg.Quotes.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("quote service: %w", err)
	}

	return &Services{
		Engine:        engine,
		Ledger:        ledgerService,
		PriceFeed:     feedService,
		Quotes:        quoteService,
		LedgerMetrics: ledgerMetrics,
	}, nil
}
