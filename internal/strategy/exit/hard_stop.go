// Package exit provides the built-in exit policies. Each policy is a pure
// decision rule over one position and its bar history; composition with a
// fixed priority order is handled by Composite.
package exit

import (
	"time"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// HardStop liquidates the full position when the day trades at or below the
// position's stop price. Fills model a resting stop order: a gap below the
// stop fills at the open, otherwise at the stop itself.
type HardStop struct {
	riskPercent float64
}

var _ strategy.ExitPolicy = (*HardStop)(nil)

// NewHardStop creates a hard stop placing the initial stop riskPercent below
// the entry price.
func NewHardStop(riskPercent float64) (*HardStop, error) {
	if riskPercent <= 0 || riskPercent >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"risk percent %.4f outside (0, 1)", riskPercent)
	}

	return &HardStop{riskPercent: riskPercent}, nil
}

// Name implements strategy.ExitPolicy.
func (h *HardStop) Name() string {
	return "hard_stop"
}

// InitialStop implements strategy.ExitPolicy.
func (h *HardStop) InitialStop(entryPrice float64) float64 {
	return entryPrice * (1 - h.riskPercent)
}

// SupportsPartialExits implements strategy.ExitPolicy.
func (h *HardStop) SupportsPartialExits() bool {
	return false
}

// CheckExit implements strategy.ExitPolicy.
func (h *HardStop) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	stop := position.StopPrice
	if stop <= 0 {
		return types.NoExit(), nil
	}

	if len(recentBars) == 0 {
		if currentPrice <= stop {
			return types.FullExit(currentPrice, types.ExitReasonStopLoss), nil
		}

		return types.NoExit(), nil
	}

	bar := recentBars[len(recentBars)-1]

	if bar.Open <= stop {
		return types.FullExit(bar.Open, types.ExitReasonStopLoss), nil
	}

	if bar.Low <= stop {
		return types.FullExit(stop, types.ExitReasonStopLoss), nil
	}

	return types.NoExit(), nil
}
