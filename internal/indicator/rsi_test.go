package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSI_WarmUp(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}

	out := RSI(closes, DefaultRSIPeriod)

	assert.Len(t, out, len(closes))
	for i := 0; i < DefaultRSIPeriod; i++ {
		assert.False(t, HasValue(out, i), "index %d should be warm-up", i)
	}
	for i := DefaultRSIPeriod; i < len(closes); i++ {
		assert.True(t, HasValue(out, i), "index %d should have a value", i)
	}
}

func TestRSI_SeriesTooShort(t *testing.T) {
	out := RSI([]float64{100, 101, 102}, DefaultRSIPeriod)

	for i := range out {
		assert.False(t, HasValue(out, i))
	}
}

func TestRSI_Bounds(t *testing.T) {
	// A jagged but deterministic series: the oscillator must stay in
	// [0,100] whatever the closes do.
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += float64(i%7) + 0.5
		} else {
			price -= float64(i%5) + 0.25
		}
		closes[i] = price
	}

	out := RSI(closes, DefaultRSIPeriod)

	for i := DefaultRSIPeriod; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], 0.0)
		assert.LessOrEqual(t, out[i], 100.0)
	}
}

func TestRSI_Extremes(t *testing.T) {
	t.Run("monotonically rising pins at 100", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}

		out := RSI(closes, DefaultRSIPeriod)

		assert.Equal(t, 100.0, out[DefaultRSIPeriod])
		assert.Equal(t, 100.0, out[len(out)-1])
	})

	t.Run("monotonically falling pins at 0", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 100 - float64(i)
		}

		out := RSI(closes, DefaultRSIPeriod)

		assert.Equal(t, 0.0, out[DefaultRSIPeriod])
		assert.Equal(t, 0.0, out[len(out)-1])
	})
}

func TestRSI_WilderSmoothing(t *testing.T) {
	// Hand-computed with period 2: seed window gains (1,1) give RSI 100 at
	// index 2; the drop at index 3 smooths to avgGain 0.5, avgLoss 0.5,
	// i.e. RSI exactly 50.
	out := RSI([]float64{1, 2, 3, 2}, 2)

	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 100.0, out[2])
	assert.InDelta(t, 50.0, out[3], 1e-12)
}
