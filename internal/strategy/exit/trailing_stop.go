package exit

import (
	"time"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// TrailingStop keeps the stop trailPercent below the highest close seen since
// entry. The stop only ratchets upward; the high-water mark is recomputed from
// the bar history each day so the policy itself carries no state.
type TrailingStop struct {
	trailPercent float64
}

var _ strategy.ExitPolicy = (*TrailingStop)(nil)

// NewTrailingStop creates a trailing stop with the given trail distance.
func NewTrailingStop(trailPercent float64) (*TrailingStop, error) {
	if trailPercent <= 0 || trailPercent >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"trail percent %.4f outside (0, 1)", trailPercent)
	}

	return &TrailingStop{trailPercent: trailPercent}, nil
}

// Name implements strategy.ExitPolicy.
func (t *TrailingStop) Name() string {
	return "trailing_stop"
}

// InitialStop implements strategy.ExitPolicy.
func (t *TrailingStop) InitialStop(entryPrice float64) float64 {
	return entryPrice * (1 - t.trailPercent)
}

// SupportsPartialExits implements strategy.ExitPolicy.
func (t *TrailingStop) SupportsPartialExits() bool {
	return false
}

// CheckExit implements strategy.ExitPolicy.
func (t *TrailingStop) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	highest := position.EntryPrice

	for _, bar := range recentBars {
		if bar.Time.Before(position.EntryDate) {
			continue
		}

		if bar.Close > highest {
			highest = bar.Close
		}
	}

	newStop := highest * (1 - t.trailPercent)
	if newStop > position.StopPrice {
		if err := position.RaiseStop(newStop); err != nil {
			return types.NoExit(), err
		}
	}

	stop := position.StopPrice
	if stop <= 0 {
		return types.NoExit(), nil
	}

	if len(recentBars) == 0 {
		if currentPrice <= stop {
			return types.FullExit(currentPrice, types.ExitReasonTrailingStop), nil
		}

		return types.NoExit(), nil
	}

	bar := recentBars[len(recentBars)-1]

	if bar.Open <= stop {
		return types.FullExit(bar.Open, types.ExitReasonTrailingStop), nil
	}

	if bar.Low <= stop {
		return types.FullExit(stop, types.ExitReasonTrailingStop), nil
	}

	return types.NoExit(), nil
}
