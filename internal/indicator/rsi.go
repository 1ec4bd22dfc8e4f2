package indicator

import "math"

// DefaultRSIPeriod is the standard Wilder lookback.
const DefaultRSIPeriod = 14

// RSI computes the Relative Strength Index over a close-price series using
// Wilder's smoothing. The returned slice is index-aligned with closes:
// result[i] is the RSI of the bar that closed at closes[i]. The first
// `period` entries are NaN because the indicator needs that many price
// changes to warm up; callers must check HasValue before using an entry.
// The alignment matters: shifting it by one bar moves every signal by a day.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = fromAverages(avgGain, avgLoss)

	// Wilder's smoothing for every bar after the seed window.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = fromAverages(avgGain, avgLoss)
	}

	return out
}

// HasValue reports whether the RSI series has a value at index i,
// i.e. the index is past the warm-up window.
func HasValue(series []float64, i int) bool {
	return i >= 0 && i < len(series) && !math.IsNaN(series[i])
}

func fromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		// No losing days in the window: maximum momentum.
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
