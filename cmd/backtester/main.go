package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"options-backtest-go/internal/backtest"
	"options-backtest-go/internal/cache"
	"options-backtest-go/internal/config"
	"options-backtest-go/internal/database"
	"options-backtest-go/internal/logger"
	"options-backtest-go/internal/marketdata"
	"options-backtest-go/internal/store"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize market data provider. time.Now is injected here and
	// nowhere else; the simulation core never reads the wall clock.
	barCache := cache.NewMemoryCache(time.Now)
	provider := marketdata.NewClient(&cfg.Provider, log, barCache)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Run the backtest once and report.
	engine := backtest.NewEngine(log, &cfg.Backtest, provider, store.NewGormStore(db))
	summary, err := engine.Run(ctx)
	if err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}

	log.Info("Backtest summary",
		zap.Int("total_trades", summary.TotalTrades),
		zap.Int("wins", summary.Wins),
		zap.Int("losses", summary.Losses),
		zap.Float64("win_rate_pct", summary.WinRate),
		zap.Float64("avg_roi_pct", summary.AvgROI),
		zap.String("profit_factor", summary.ProfitFactor.String()),
		zap.Float64("max_drawdown_pct", summary.MaxDrawdown),
	)
}
