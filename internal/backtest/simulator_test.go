package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"options-backtest-go/internal/config"
	"options-backtest-go/internal/marketdata"
	"options-backtest-go/internal/pricing"
)

func simulatorConfig() *config.Backtest {
	return &config.Backtest{
		StopLoss:     0.45,
		ProfitTarget: 1.0,
		MaxHoldDays:  10,
	}
}

func callSignal() TradeSignal {
	entry := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	return TradeSignal{
		Date:         entry,
		Ticker:       "AAPL",
		OptionType:   pricing.Call,
		Strike:       102,
		Expiry:       entry.AddDate(0, 0, 7),
		EntryPremium: 2.00,
		Contracts:    5,
		StockPrice:   100,
		IV:           0.35,
	}
}

// fixedPremiums returns a simulator whose repricer replays the given
// premiums in order, one per forward bar, ignoring spot and time.
func fixedPremiums(cfg *config.Backtest, premiums []float64) *Simulator {
	s := NewSimulator(cfg, zap.NewNop())
	day := 0
	s.reprice = func(sig TradeSignal, spot, t float64) (float64, error) {
		p := premiums[day]
		day++
		return p, nil
	}
	return s
}

// forwardFrom builds len(closes) daily bars starting the day after entry.
func forwardFrom(sig TradeSignal, closes []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{
			Date:  sig.Date.AddDate(0, 0, i+1),
			Close: c,
		}
	}
	return bars
}

func TestSimulate_ProfitTargetScenario(t *testing.T) {
	// Arrange: entry at 2.00, day premiums 2.10 then 4.50 against a 100%
	// profit target. Day two's 125% return crosses the target.
	sig := callSignal()
	sim := fixedPremiums(simulatorConfig(), []float64{2.10, 4.50})
	forward := forwardFrom(sig, []float64{103, 110})

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, ExitTarget, result.ExitReason)
	assert.Equal(t, forward[1].Date, result.ExitDate)
	assert.Equal(t, 4.50, result.ExitPremium)
	assert.InDelta(t, 1250.0, result.PnL, 1e-9) // (4.50-2.00) x 5 x 100
	assert.InDelta(t, 1.25, result.ROI, 1e-9)
	assert.Zero(t, result.MaxDrawdown) // never traded below entry
}

func TestSimulate_TargetNotBeforeThresholdCrossed(t *testing.T) {
	// Arrange: the position grinds up but only crosses +100% on day three.
	sig := callSignal()
	sim := fixedPremiums(simulatorConfig(), []float64{2.50, 3.50, 4.10, 9.00})
	forward := forwardFrom(sig, []float64{101, 103, 106, 115})

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, ExitTarget, result.ExitReason)
	assert.Equal(t, forward[2].Date, result.ExitDate)
	assert.Equal(t, 4.10, result.ExitPremium)
}

func TestSimulate_StopLossAtFirstBreach(t *testing.T) {
	// Arrange: -25% on day one, -47.5% on day two against a 45% stop.
	sig := callSignal()
	sim := fixedPremiums(simulatorConfig(), []float64{1.50, 1.05, 0.90})
	forward := forwardFrom(sig, []float64{98, 95, 93})

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, ExitStop, result.ExitReason)
	assert.Equal(t, forward[1].Date, result.ExitDate)
	assert.Equal(t, 1.05, result.ExitPremium)
	assert.InDelta(t, -0.475, result.ROI, 1e-9)
	assert.InDelta(t, -0.475, result.MaxDrawdown, 1e-9)
}

func TestSimulate_StopWinsOverExpiryOnSameDay(t *testing.T) {
	// Arrange: a single bar on the expiry date that also breaches the
	// stop. The check order is stop first, so the exit takes the repriced
	// premium rather than intrinsic settlement.
	sig := callSignal()
	sim := fixedPremiums(simulatorConfig(), []float64{0.90})
	bar := marketdata.Bar{Date: sig.Expiry, Close: 101}

	// Act
	result, err := sim.Simulate(sig, []marketdata.Bar{bar})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, ExitStop, result.ExitReason)
	assert.Equal(t, 0.90, result.ExitPremium)
}

func TestSimulate_ExpirySettlesAtIntrinsic(t *testing.T) {
	// Arrange: flat premiums that trigger nothing until the expiry date,
	// where the call settles at spot minus strike, not at the model price.
	sig := callSignal()
	sim := fixedPremiums(simulatorConfig(), []float64{2.10, 2.20, 2.10, 2.20, 2.10, 2.20, 2.30})
	closes := []float64{101, 102, 103, 103, 104, 104, 110}
	forward := forwardFrom(sig, closes) // bar 7 lands exactly on expiry

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, ExitExpiry, result.ExitReason)
	assert.Equal(t, sig.Expiry, result.ExitDate)
	assert.Equal(t, 8.0, result.ExitPremium) // max(0, 110-102)
	assert.InDelta(t, (8.0-2.0)*5*100, result.PnL, 1e-9)
}

func TestSimulate_TruncatedSeriesForcesIntrinsicExit(t *testing.T) {
	// Arrange: only two forward bars, both before expiry and neither
	// hitting a threshold. The window ended, not the contract; the trade
	// is force-settled at intrinsic value on the last bar.
	sig := callSignal()
	sim := fixedPremiums(simulatorConfig(), []float64{2.10, 1.90})
	forward := forwardFrom(sig, []float64{101, 100}) // call on 102 is worthless here

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, ExitExpiry, result.ExitReason)
	assert.Equal(t, forward[1].Date, result.ExitDate)
	assert.Zero(t, result.ExitPremium)
	assert.InDelta(t, -1.0, result.ROI, 1e-9)
	assert.InDelta(t, -1.0, result.MaxDrawdown, 1e-9)
}

func TestSimulate_EmptyForwardSeriesDropsSignal(t *testing.T) {
	// Arrange
	sim := NewSimulator(simulatorConfig(), zap.NewNop())

	// Act
	result, err := sim.Simulate(callSignal(), nil)

	// Assert: insufficient data is not an error, just no result.
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestSimulate_RepriceErrorPropagates(t *testing.T) {
	// Arrange
	sig := callSignal()
	sim := NewSimulator(simulatorConfig(), zap.NewNop())
	sim.reprice = func(TradeSignal, float64, float64) (float64, error) {
		return 0, errors.New("bad bar")
	}

	// Act
	result, err := sim.Simulate(sig, forwardFrom(sig, []float64{100}))

	// Assert
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestSimulate_ModelRepricing_RisingSeriesHitsTarget(t *testing.T) {
	// Arrange: with the real pricing model, a sharply rising underlying
	// multiplies a near-the-money call's premium well past +100% without
	// ever dipping, so the stop can never fire first.
	sig := callSignal()
	entryPremium, err := pricing.Price(sig.StockPrice, sig.Strike, 7.0/365, 0.05, sig.IV, pricing.Call)
	assert.NoError(t, err)
	sig.EntryPremium = entryPremium

	sim := NewSimulator(simulatorConfig(), zap.NewNop())
	forward := forwardFrom(sig, []float64{104, 109, 115, 122, 130})

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, ExitTarget, result.ExitReason)
	assert.GreaterOrEqual(t, result.ROI, 1.0)
}

func TestSimulate_ModelRepricing_FallingSeriesHitsStop(t *testing.T) {
	// Arrange
	sig := callSignal()
	entryPremium, err := pricing.Price(sig.StockPrice, sig.Strike, 7.0/365, 0.05, sig.IV, pricing.Call)
	assert.NoError(t, err)
	sig.EntryPremium = entryPremium

	sim := NewSimulator(simulatorConfig(), zap.NewNop())
	forward := forwardFrom(sig, []float64{96, 92, 88, 85, 82})

	// Act
	result, err := sim.Simulate(sig, forward)

	// Assert
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, ExitStop, result.ExitReason)
	assert.LessOrEqual(t, result.ROI, -0.45)
}
