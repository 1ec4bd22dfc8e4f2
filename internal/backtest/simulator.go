package backtest

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"options-backtest-go/internal/config"
	"options-backtest-go/internal/marketdata"
	"options-backtest-go/internal/pricing"
)

// RepriceFunc values an open position given the day's spot and the time to
// expiry in years. It exists so tests can pin exact day-by-day premiums
// without going through the pricing model.
type RepriceFunc func(sig TradeSignal, spot, t float64) (float64, error)

// Simulator replays one signal against its forward bar series and resolves
// it to exactly one terminal state: stopped, target hit, or expired.
type Simulator struct {
	cfg     *config.Backtest
	logger  *zap.Logger
	reprice RepriceFunc
}

// NewSimulator creates a simulator that reprices through the pricing model.
func NewSimulator(cfg *config.Backtest, logger *zap.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		logger: logger,
		reprice: func(sig TradeSignal, spot, t float64) (float64, error) {
			return pricing.Price(spot, sig.Strike, t, riskFreeRate, sig.IV, sig.OptionType)
		},
	}
}

// Simulate walks the bars after entry, repricing the position each day.
// The exit checks run in a fixed order each day: stop-loss, then profit
// target, then expiry. Reordering them changes results on days where a
// close satisfies more than one rule, so the order is part of the contract.
//
// A signal whose forward series is empty yields (nil, nil): insufficient
// data drops the trade, it does not fail the run.
func (s *Simulator) Simulate(sig TradeSignal, forward []marketdata.Bar) (*TradeResult, error) {
	if len(forward) == 0 {
		return nil, nil
	}

	maxDrawdown := 0.0

	for _, bar := range forward {
		daysToExpiry := sig.Expiry.Sub(bar.Date).Hours() / 24
		t := math.Max(0, daysToExpiry/365)

		premium, err := s.reprice(sig, bar.Close, t)
		if err != nil {
			return nil, fmt.Errorf("repricing %s %s on %s: %w",
				sig.Ticker, sig.OptionType, bar.Date.Format("2006-01-02"), err)
		}

		roi := (premium - sig.EntryPremium) / sig.EntryPremium
		if roi < maxDrawdown {
			maxDrawdown = roi
		}

		switch {
		case roi <= -s.cfg.StopLoss:
			return s.close(sig, bar, premium, ExitStop, maxDrawdown), nil
		case roi >= s.cfg.ProfitTarget:
			return s.close(sig, bar, premium, ExitTarget, maxDrawdown), nil
		case daysToExpiry <= 0:
			// No time value remains; settle at intrinsic, not model price.
			intrinsic := pricing.Intrinsic(sig.OptionType, bar.Close, sig.Strike)
			return s.close(sig, bar, intrinsic, ExitExpiry, maxDrawdown), nil
		}
	}

	// The series ended before any exit fired: the backtest window was cut
	// short of the contract's life. Force-settle on the last bar at
	// intrinsic value.
	last := forward[len(forward)-1]
	intrinsic := pricing.Intrinsic(sig.OptionType, last.Close, sig.Strike)
	return s.close(sig, last, intrinsic, ExitExpiry, maxDrawdown), nil
}

func (s *Simulator) close(sig TradeSignal, bar marketdata.Bar, exitPremium float64, reason ExitReason, maxDrawdown float64) *TradeResult {
	roi := (exitPremium - sig.EntryPremium) / sig.EntryPremium
	if roi < maxDrawdown {
		maxDrawdown = roi
	}

	result := &TradeResult{
		Signal:      sig,
		ExitDate:    bar.Date,
		ExitPremium: exitPremium,
		ExitReason:  reason,
		PnL:         (exitPremium - sig.EntryPremium) * float64(sig.Contracts) * contractMultiplier,
		ROI:         roi,
		MaxDrawdown: maxDrawdown,
	}

	s.logger.Debug("Trade resolved",
		zap.String("symbol", sig.Ticker),
		zap.String("type", string(sig.OptionType)),
		zap.String("reason", string(reason)),
		zap.Float64("pnl", result.PnL),
		zap.Float64("roi", result.ROI),
	)

	return result
}
