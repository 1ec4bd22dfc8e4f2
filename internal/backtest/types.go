package backtest

import (
	"fmt"
	"time"

	"options-backtest-go/internal/pricing"
)

// ExitReason says which rule closed a simulated trade.
type ExitReason string

const (
	ExitTarget ExitReason = "target"
	ExitStop   ExitReason = "stop"
	ExitExpiry ExitReason = "expiry"
)

// Strategy constants shared by the scanner and simulator.
const (
	// riskFreeRate is the flat annual rate used for all pricing.
	riskFreeRate = 0.05
	// signalIV is the fixed implied volatility assumed at entry.
	signalIV = 0.35
	// expiryDays is how far out the scanner dates each contract.
	expiryDays = 7
	// contractMultiplier is the standard 100-share option contract size.
	contractMultiplier = 100
)

// TradeSignal is one candidate trade emitted by the scanner. It is created
// once, never mutated, and consumed by exactly one simulation.
type TradeSignal struct {
	Date         time.Time
	Ticker       string
	OptionType   pricing.OptionType
	Strike       float64
	Expiry       time.Time
	EntryPremium float64
	Contracts    int
	RSI          float64
	VIX          float64
	StockPrice   float64
	IV           float64
}

// TradeResult is the terminal outcome of simulating one signal.
type TradeResult struct {
	Signal      TradeSignal
	ExitDate    time.Time
	ExitPremium float64
	ExitReason  ExitReason
	PnL         float64
	ROI         float64
	MaxDrawdown float64
}

// ProfitFactor is gross profit over gross loss. A strategy with winners and
// no losers has no meaningful ratio; NoLosses tags that case explicitly so
// +Inf never leaks into a report or a database column.
type ProfitFactor struct {
	Ratio    float64
	NoLosses bool
}

func (p ProfitFactor) String() string {
	if p.NoLosses {
		return "no losses"
	}
	return fmt.Sprintf("%.2f", p.Ratio)
}

// RunSummary holds portfolio-level statistics, recomputed wholly from the
// trade results of a run.
type RunSummary struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	AvgROI       float64
	ProfitFactor ProfitFactor
	MaxDrawdown  float64
}
