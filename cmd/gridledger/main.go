package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"gridledger/internal/config"
	"gridledger/internal/ledger"
	"gridledger/internal/logger"
	"gridledger/internal/store/gormstore"

	"github.com/shopspring/decimal"
)

// gridledger initializes the trading ledger: it migrates the schema, seeds
// the agent roster idempotently and logs the current standings. The decision
// engine, market ingester and broker adapter are separate services that open
// the same database.
func main() {
	ctx := context.Background()
	cfgPath := os.Getenv("GRIDLEDGER_CONFIG")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)

	if cfgPath != "" {
		err := config.Watch(cfgPath, func(next *config.Config) {
			logger.SetLevel(next.App.LogLevel)
			logger.Infof("config reloaded, log level now %s", next.App.LogLevel)
		}, func(err error) {
			logger.Warnf("config reload failed: %v", err)
		})
		if err != nil {
			logger.Warnf("config watch unavailable: %v", err)
		}
	}

	store, err := gormstore.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("opening ledger database failed: %v", err)
	}
	defer store.Close()
	logger.Infof("ledger database ready at %s (env=%s)", cfg.Database.Path, cfg.App.Env)

	seeds := make([]ledger.SeedAccount, 0, len(cfg.Seed.Accounts))
	balance := decimal.NewFromFloat(cfg.Seed.InitialBalance)
	for _, acc := range cfg.Seed.Accounts {
		seeds = append(seeds, ledger.SeedAccount{
			ID:             acc.ID,
			Provider:       acc.Provider,
			ModelName:      acc.Model,
			InitialBalance: balance,
		})
	}
	if err := store.Seed(ctx, seeds); err != nil {
		log.Fatalf("seeding accounts failed: %v", err)
	}
	logger.Infof("seeded %d accounts at %s each", len(seeds), balance)

	board, err := store.Leaderboard(ctx)
	if err != nil {
		log.Fatalf("reading leaderboard failed: %v", err)
	}
	for i, entry := range board {
		logger.Infof("#%d %s (%s/%s) balance=%s pnl=%s roi=%s%% win_rate=%s%% trades=%d",
			i+1, entry.AccountID, entry.Provider, entry.ModelName,
			entry.CurrentBalance, entry.TotalPnL, entry.ROIPercentage, entry.WinRate, entry.TotalTrades)
	}
}

func setupLogOutput(path string) (io.Closer, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}
