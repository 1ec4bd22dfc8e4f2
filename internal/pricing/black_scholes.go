package pricing

import (
	"errors"
	"fmt"
	"math"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// MinTick is the smallest premium the model will quote. Deep out-of-the-money
// contracts can price below zero from floating point noise; flooring at one
// tick keeps every quoted premium tradable.
const MinTick = 0.05

// ErrInvalidInput is returned when a pricing precondition is violated:
// non-positive spot or strike, or non-positive volatility with time remaining.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Greeks holds the price sensitivities of an option contract.
// Theta is per calendar day, vega per volatility point, rho per rate point.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Price returns the Black-Scholes value of a European option, floored at
// MinTick. At expiry (t <= 0) it returns the intrinsic value instead of
// evaluating d1/d2, so zero time never divides by zero.
func Price(spot, strike, t, rate, sigma float64, optionType OptionType) (float64, error) {
	if err := checkInputs(spot, strike, t, sigma); err != nil {
		return 0, err
	}

	if t <= 0 {
		return math.Max(Intrinsic(optionType, spot, strike), MinTick), nil
	}

	d1, d2 := dValues(spot, strike, t, rate, sigma)
	discount := strike * math.Exp(-rate*t)

	var price float64
	switch optionType {
	case Put:
		price = discount*normCDF(-d2) - spot*normCDF(-d1)
	default:
		price = spot*normCDF(d1) - discount*normCDF(d2)
	}

	return math.Max(price, MinTick), nil
}

// ComputeGreeks returns the option sensitivities. At expiry the contract is
// pure intrinsic value: delta is a step function of moneyness and every
// other sensitivity is zero.
func ComputeGreeks(spot, strike, t, rate, sigma float64, optionType OptionType) (Greeks, error) {
	if err := checkInputs(spot, strike, t, sigma); err != nil {
		return Greeks{}, err
	}

	if t <= 0 {
		return expiryGreeks(spot, strike, optionType), nil
	}

	d1, d2 := dValues(spot, strike, t, rate, sigma)
	sqrtT := math.Sqrt(t)
	pdf := normPDF(d1)
	discount := strike * math.Exp(-rate*t)

	g := Greeks{
		Gamma: pdf / (spot * sigma * sqrtT),
		Vega:  spot * pdf * sqrtT / 100,
	}

	decay := -(spot * pdf * sigma) / (2 * sqrtT)
	if optionType == Put {
		g.Delta = normCDF(d1) - 1
		g.Theta = (decay + rate*discount*normCDF(-d2)) / 365
		g.Rho = -t * discount * normCDF(-d2) / 100
	} else {
		g.Delta = normCDF(d1)
		g.Theta = (decay - rate*discount*normCDF(d2)) / 365
		g.Rho = t * discount * normCDF(d2) / 100
	}

	return g, nil
}

// Intrinsic returns the exercise value of an option at the given spot.
func Intrinsic(optionType OptionType, spot, strike float64) float64 {
	if optionType == Put {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}

func checkInputs(spot, strike, t, sigma float64) error {
	if spot <= 0 || strike <= 0 {
		return fmt.Errorf("%w: spot=%v strike=%v", ErrInvalidInput, spot, strike)
	}
	// Volatility only matters while time value remains; t <= 0 is the
	// intrinsic branch, not an error.
	if t > 0 && sigma <= 0 {
		return fmt.Errorf("%w: sigma=%v", ErrInvalidInput, sigma)
	}
	return nil
}

func dValues(spot, strike, t, rate, sigma float64) (d1, d2 float64) {
	sqrtT := math.Sqrt(t)
	d1 = (math.Log(spot/strike) + (rate+sigma*sigma/2)*t) / (sigma * sqrtT)
	d2 = d1 - sigma*sqrtT
	return d1, d2
}

func expiryGreeks(spot, strike float64, optionType OptionType) Greeks {
	var delta float64
	if optionType == Put {
		if spot < strike {
			delta = -1
		}
	} else {
		if spot > strike {
			delta = 1
		}
	}
	return Greeks{Delta: delta}
}

// Coefficients of the Abramowitz & Stegun 26.2.17 rational approximation.
// Fixed here so fixture values reproduce bit-for-bit; max absolute error
// is about 7.5e-8.
const (
	cdfP  = 0.2316419
	cdfB1 = 0.319381530
	cdfB2 = -0.356563782
	cdfB3 = 1.781477937
	cdfB4 = -1.821255978
	cdfB5 = 1.330274429
)

func normCDF(x float64) float64 {
	if x < 0 {
		return 1 - normCDF(-x)
	}
	k := 1 / (1 + cdfP*x)
	poly := k * (cdfB1 + k*(cdfB2+k*(cdfB3+k*(cdfB4+k*cdfB5))))
	return 1 - normPDF(x)*poly
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
