package exit

import (
	"time"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// TimeLimit liquidates the full position at the close once it has been held
// for maxDays or more.
type TimeLimit struct {
	maxDays int
}

var _ strategy.ExitPolicy = (*TimeLimit)(nil)

// NewTimeLimit creates a holding-period limit exit.
func NewTimeLimit(maxDays int) (*TimeLimit, error) {
	if maxDays <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "max days must be positive, got %d", maxDays)
	}

	return &TimeLimit{maxDays: maxDays}, nil
}

// Name implements strategy.ExitPolicy.
func (t *TimeLimit) Name() string {
	return "time_limit"
}

// InitialStop implements strategy.ExitPolicy.
func (t *TimeLimit) InitialStop(entryPrice float64) float64 {
	return 0
}

// SupportsPartialExits implements strategy.ExitPolicy.
func (t *TimeLimit) SupportsPartialExits() bool {
	return false
}

// CheckExit implements strategy.ExitPolicy.
func (t *TimeLimit) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	if position.HoldingDays(currentDate) >= t.maxDays {
		return types.FullExit(currentPrice, types.ExitReasonTimeLimit), nil
	}

	return types.NoExit(), nil
}
