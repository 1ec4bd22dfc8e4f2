package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"options-backtest-go/internal/config"
	"options-backtest-go/internal/marketdata"
	"options-backtest-go/internal/models"
	"options-backtest-go/internal/store"
)

const dateLayout = "2006-01-02"

// Engine sequences a backtest run: scan every symbol for signals, simulate
// each signal, aggregate the outcomes, and record everything in the store.
type Engine struct {
	logger    *zap.Logger
	cfg       *config.Backtest
	provider  marketdata.Provider
	store     store.RunStore
	scanner   *Scanner
	simulator *Simulator
}

// NewEngine creates a backtest engine.
func NewEngine(logger *zap.Logger, cfg *config.Backtest, provider marketdata.Provider, runStore store.RunStore) *Engine {
	return &Engine{
		logger:    logger,
		cfg:       cfg,
		provider:  provider,
		store:     runStore,
		scanner:   NewScanner(cfg, logger),
		simulator: NewSimulator(cfg, logger),
	}
}

// Run executes one full backtest and returns its summary. The run record is
// created before scanning starts; if that fails, nothing runs. Any later
// unrecoverable error marks the run failed and is returned to the caller.
// Per-symbol and per-signal failures never abort the run: they just remove
// their signals or results from the pool.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	start, err := time.Parse(dateLayout, e.cfg.StartDate)
	if err != nil {
		return RunSummary{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(dateLayout, e.cfg.EndDate)
	if err != nil {
		return RunSummary{}, fmt.Errorf("invalid end date: %w", err)
	}

	runID := uuid.NewString()
	if err := e.store.CreateRun(runID, e.cfg); err != nil {
		// Without a run record there is nowhere to leave forensic state,
		// so this is the one place the engine aborts before doing work.
		return RunSummary{}, fmt.Errorf("could not create run record: %w", err)
	}

	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("Backtest run started",
		zap.String("start", e.cfg.StartDate),
		zap.String("end", e.cfg.EndDate),
		zap.Strings("symbols", e.cfg.Symbols),
	)

	summary, err := e.execute(ctx, logger, runID, start, end)
	if err != nil {
		logger.Error("Backtest run failed", zap.Error(err))
		if failErr := e.store.FailRun(runID, err.Error()); failErr != nil {
			logger.Error("Could not mark run as failed", zap.Error(failErr))
		}
		return RunSummary{}, err
	}

	if err := e.store.CompleteRun(runID, summaryRecord(summary)); err != nil {
		logger.Error("Backtest run failed", zap.Error(err))
		if failErr := e.store.FailRun(runID, err.Error()); failErr != nil {
			logger.Error("Could not mark run as failed", zap.Error(failErr))
		}
		return RunSummary{}, fmt.Errorf("could not complete run record: %w", err)
	}

	logger.Info("Backtest run completed",
		zap.Int("total_trades", summary.TotalTrades),
		zap.Float64("win_rate", summary.WinRate),
		zap.String("profit_factor", summary.ProfitFactor.String()),
	)

	return summary, nil
}

func (e *Engine) execute(ctx context.Context, logger *zap.Logger, runID string, start, end time.Time) (RunSummary, error) {
	vixByDate := e.fetchVIX(ctx, logger, start, end)

	signals, barsBySymbol := e.scanSymbols(ctx, logger, start, end, vixByDate)
	logger.Info("Scan complete", zap.Int("signals", len(signals)))

	results := e.simulateSignals(logger, runID, signals, barsBySymbol)
	logger.Info("Simulation complete", zap.Int("trades", len(results)))

	return Aggregate(results), nil
}

// fetchVIX loads the volatility index once into a read-only map keyed by
// date string. A failed fetch degrades to an empty map: every lookup then
// takes the per-date fallback instead of killing the run.
func (e *Engine) fetchVIX(ctx context.Context, logger *zap.Logger, start, end time.Time) map[string]float64 {
	vixByDate := make(map[string]float64)
	bars, err := e.provider.GetVolatilityIndexHistory(ctx, start, end)
	if err != nil {
		logger.Warn("Could not fetch volatility index history, using fallback for all dates", zap.Error(err))
		return vixByDate
	}
	for _, bar := range bars {
		vixByDate[bar.Date.Format(dateLayout)] = bar.Close
	}
	return vixByDate
}

type scanOutcome struct {
	symbol  string
	bars    []marketdata.Bar
	signals []TradeSignal
}

// scanSymbols fetches each symbol's history and scans it for signals,
// fanning out across a bounded pool. A symbol that fails to fetch simply
// contributes nothing.
func (e *Engine) scanSymbols(ctx context.Context, logger *zap.Logger, start, end time.Time, vixByDate map[string]float64) ([]TradeSignal, map[string][]marketdata.Bar) {
	var wg sync.WaitGroup
	outcomes := make(chan scanOutcome, len(e.cfg.Symbols))
	sem := make(chan struct{}, e.concurrency())

	for _, symbol := range e.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			bars, err := e.provider.GetDailyBars(ctx, symbol, start, end)
			if err != nil {
				logger.Warn("Skipping symbol, could not fetch bars",
					zap.String("symbol", symbol), zap.Error(err))
				return
			}
			outcomes <- scanOutcome{
				symbol:  symbol,
				bars:    bars,
				signals: e.scanner.Scan(symbol, bars, vixByDate),
			}
		}(symbol)
	}

	// Wait for all goroutines to finish, then close the channel
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var signals []TradeSignal
	barsBySymbol := make(map[string][]marketdata.Bar, len(e.cfg.Symbols))
	for outcome := range outcomes {
		barsBySymbol[outcome.symbol] = outcome.bars
		signals = append(signals, outcome.signals...)
	}

	return signals, barsBySymbol
}

// simulateSignals runs every signal through the simulator on a bounded pool
// and persists each result as it resolves. Results arrive in arbitrary
// order; aggregation downstream does not care.
func (e *Engine) simulateSignals(logger *zap.Logger, runID string, signals []TradeSignal, barsBySymbol map[string][]marketdata.Bar) []TradeResult {
	var wg sync.WaitGroup
	resolved := make(chan TradeResult, len(signals))
	sem := make(chan struct{}, e.concurrency())

	for _, sig := range signals {
		wg.Add(1)
		go func(sig TradeSignal) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// The symbol's full series is already in hand; the forward
			// slice is everything after the entry date, capped at the
			// maximum holding period.
			forward := forwardBars(barsBySymbol[sig.Ticker], sig.Date, e.cfg.MaxHoldDays)

			result, err := e.simulator.Simulate(sig, forward)
			if err != nil {
				logger.Warn("Dropping signal, simulation failed",
					zap.String("symbol", sig.Ticker),
					zap.Time("date", sig.Date),
					zap.Error(err))
				return
			}
			if result == nil {
				logger.Debug("Dropping signal, no forward bars",
					zap.String("symbol", sig.Ticker),
					zap.Time("date", sig.Date))
				return
			}

			if err := e.store.SaveTradeRecord(toRecord(runID, result)); err != nil {
				logger.Error("Could not persist trade record",
					zap.String("symbol", sig.Ticker), zap.Error(err))
			}
			resolved <- *result
		}(sig)
	}

	go func() {
		wg.Wait()
		close(resolved)
	}()

	var results []TradeResult
	for result := range resolved {
		results = append(results, result)
	}

	return results
}

// concurrency returns the worker pool bound, never less than one so the
// semaphore cannot deadlock on a hand-built config.
func (e *Engine) concurrency() int {
	if e.cfg.MaxConcurrency < 1 {
		return 1
	}
	return e.cfg.MaxConcurrency
}

// forwardBars returns up to maxHoldDays bars strictly after the entry date.
func forwardBars(bars []marketdata.Bar, entry time.Time, maxHoldDays int) []marketdata.Bar {
	var forward []marketdata.Bar
	for _, bar := range bars {
		if !bar.Date.After(entry) {
			continue
		}
		forward = append(forward, bar)
		if len(forward) == maxHoldDays {
			break
		}
	}
	return forward
}

func toRecord(runID string, r *TradeResult) *models.TradeRecord {
	return &models.TradeRecord{
		RunID:        runID,
		Ticker:       r.Signal.Ticker,
		OptionType:   string(r.Signal.OptionType),
		EntryDate:    r.Signal.Date.Format(dateLayout),
		Strike:       r.Signal.Strike,
		Expiry:       r.Signal.Expiry.Format(dateLayout),
		EntryPremium: r.Signal.EntryPremium,
		Contracts:    r.Signal.Contracts,
		RSI:          r.Signal.RSI,
		VIX:          r.Signal.VIX,
		StockPrice:   r.Signal.StockPrice,
		IV:           r.Signal.IV,
		ExitDate:     r.ExitDate.Format(dateLayout),
		ExitPremium:  r.ExitPremium,
		ExitReason:   string(r.ExitReason),
		PnL:          r.PnL,
		ROI:          r.ROI,
		MaxDrawdown:  r.MaxDrawdown,
	}
}

func summaryRecord(s RunSummary) *models.BacktestRun {
	return &models.BacktestRun{
		TotalTrades:  s.TotalTrades,
		Wins:         s.Wins,
		Losses:       s.Losses,
		WinRate:      s.WinRate,
		AvgROI:       s.AvgROI,
		ProfitFactor: s.ProfitFactor.Ratio,
		NoLosses:     s.ProfitFactor.NoLosses,
		MaxDrawdown:  s.MaxDrawdown,
	}
}
