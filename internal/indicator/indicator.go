// Package indicator provides the technical calculations used by the bundled
// scanners and exit policies. All functions are pure: they operate on a bar
// window ordered by ascending time and return a single value for the last bar.
package indicator

import (
	"math"

	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// SMA returns the simple moving average of closing prices over the last
// period bars.
func SMA(bars []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	if len(bars) < period {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"SMA(%d) needs %d bars, have %d", period, period, len(bars))
	}

	sum := 0.0
	for _, bar := range bars[len(bars)-period:] {
		sum += bar.Close
	}

	return sum / float64(period), nil
}

// EMA returns the exponential moving average of closing prices, seeded with
// the SMA of the first period bars and smoothed over the remainder.
func EMA(bars []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	if len(bars) < period {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"EMA(%d) needs %d bars, have %d", period, period, len(bars))
	}

	seed := 0.0
	for _, bar := range bars[:period] {
		seed += bar.Close
	}

	ema := seed / float64(period)
	multiplier := 2.0 / (float64(period) + 1.0)

	for _, bar := range bars[period:] {
		ema = (bar.Close-ema)*multiplier + ema
	}

	return ema, nil
}

// ATR returns the average true range over the last period bars. The true range
// of a bar accounts for gaps against the previous close.
func ATR(bars []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	// One extra bar is needed for the first previous close.
	if len(bars) < period+1 {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"ATR(%d) needs %d bars, have %d", period, period+1, len(bars))
	}

	window := bars[len(bars)-period-1:]
	sum := 0.0

	for i := 1; i < len(window); i++ {
		highLow := window[i].High - window[i].Low
		highClose := math.Abs(window[i].High - window[i-1].Close)
		lowClose := math.Abs(window[i].Low - window[i-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}

	return sum / float64(period), nil
}
