package backtest

import (
	"math"

	"go.uber.org/zap"

	"options-backtest-go/internal/config"
	"options-backtest-go/internal/indicator"
	"options-backtest-go/internal/marketdata"
	"options-backtest-go/internal/pricing"
)

// fallbackVIX stands in for the volatility index on dates with no reading.
// Missing a day of index data is not a reason to skip a whole bar.
const fallbackVIX = 20

// Scanner walks a symbol's price history and emits candidate option trades.
// Its output is fully deterministic for fixed inputs.
type Scanner struct {
	cfg    *config.Backtest
	logger *zap.Logger
}

// NewScanner creates a signal scanner for the given parameters.
func NewScanner(cfg *config.Backtest, logger *zap.Logger) *Scanner {
	return &Scanner{cfg: cfg, logger: logger}
}

// Scan generates at most one signal per bar: a call when the RSI is
// oversold, a put when it is overbought. The two thresholds cannot both be
// satisfied on the same bar. vixByDate is keyed by "2006-01-02" date strings
// and is read-only here.
func (s *Scanner) Scan(symbol string, bars []marketdata.Bar, vixByDate map[string]float64) []TradeSignal {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	rsi := indicator.RSI(closes, indicator.DefaultRSIPeriod)

	var signals []TradeSignal
	for i, bar := range bars {
		if !indicator.HasValue(rsi, i) {
			continue // warm-up window
		}

		vix, ok := vixByDate[bar.Date.Format("2006-01-02")]
		if !ok {
			vix = fallbackVIX
		}
		if vix < s.cfg.MinVIX {
			continue // low-volatility regime, premiums not worth selling into
		}

		var optionType pricing.OptionType
		var strike float64
		switch {
		case rsi[i] < s.cfg.RSIOversold:
			optionType = pricing.Call
			strike = math.Round(bar.Close * 1.02)
		case rsi[i] > s.cfg.RSIOverbought:
			optionType = pricing.Put
			strike = math.Round(bar.Close * 0.98)
		default:
			continue
		}

		t := float64(expiryDays) / 365
		premium, err := pricing.Price(bar.Close, strike, t, riskFreeRate, signalIV, optionType)
		if err != nil {
			s.logger.Warn("Skipping bar, could not price entry premium",
				zap.String("symbol", symbol),
				zap.Time("date", bar.Date),
				zap.Error(err),
			)
			continue
		}

		contracts := int(math.Floor(s.cfg.Budget / (premium * contractMultiplier)))
		if contracts == 0 || premium <= pricing.MinTick {
			continue // not economically actionable
		}

		signals = append(signals, TradeSignal{
			Date:         bar.Date,
			Ticker:       symbol,
			OptionType:   optionType,
			Strike:       strike,
			Expiry:       bar.Date.AddDate(0, 0, expiryDays),
			EntryPremium: premium,
			Contracts:    contracts,
			RSI:          rsi[i],
			VIX:          vix,
			StockPrice:   bar.Close,
			IV:           signalIV,
		})
	}

	return signals
}
