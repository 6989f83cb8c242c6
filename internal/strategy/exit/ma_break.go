package exit

import (
	"time"

	"github.com/quantatrix/backlab/internal/indicator"
	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	pkgerrors "github.com/quantatrix/backlab/pkg/errors"
)

// MABreak liquidates the full position when the close falls below the simple
// moving average of the last period closes. Days with too little history to
// compute the average are treated as "hold", not as faults, so the rule is
// quiet during warmup.
type MABreak struct {
	period int
}

var _ strategy.ExitPolicy = (*MABreak)(nil)

// NewMABreak creates a moving-average break exit over the given period.
func NewMABreak(period int) (*MABreak, error) {
	if period <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	return &MABreak{period: period}, nil
}

// Name implements strategy.ExitPolicy.
func (m *MABreak) Name() string {
	return "ma_break"
}

// InitialStop implements strategy.ExitPolicy.
func (m *MABreak) InitialStop(entryPrice float64) float64 {
	return 0
}

// SupportsPartialExits implements strategy.ExitPolicy.
func (m *MABreak) SupportsPartialExits() bool {
	return false
}

// CheckExit implements strategy.ExitPolicy.
func (m *MABreak) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	ma, err := indicator.SMA(recentBars, m.period)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.ErrCodeInsufficientData) {
			return types.NoExit(), nil
		}

		return types.NoExit(), err
	}

	if currentPrice < ma {
		return types.FullExit(currentPrice, types.ExitReasonMABreak), nil
	}

	return types.NoExit(), nil
}
