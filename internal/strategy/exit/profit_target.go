package exit

import (
	"time"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// ProfitTarget takes a partial profit the first time the day's high reaches
// gainPercent above entry. It fires at most once per position: after the first
// reduction the share count no longer equals the original count and the rule
// stays quiet, leaving the remainder to the other policies.
type ProfitTarget struct {
	gainPercent float64
	fraction    float64
}

var _ strategy.ExitPolicy = (*ProfitTarget)(nil)

// NewProfitTarget creates a profit target liquidating fraction of the position
// at entry × (1 + gainPercent).
func NewProfitTarget(gainPercent, fraction float64) (*ProfitTarget, error) {
	if gainPercent <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "gain percent %.4f must be positive", gainPercent)
	}

	if fraction <= 0 || fraction > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "fraction %.4f outside (0, 1]", fraction)
	}

	return &ProfitTarget{
		gainPercent: gainPercent,
		fraction:    fraction,
	}, nil
}

// Name implements strategy.ExitPolicy.
func (p *ProfitTarget) Name() string {
	return "profit_target"
}

// InitialStop implements strategy.ExitPolicy.
func (p *ProfitTarget) InitialStop(entryPrice float64) float64 {
	return 0
}

// SupportsPartialExits implements strategy.ExitPolicy.
func (p *ProfitTarget) SupportsPartialExits() bool {
	return p.fraction < 1
}

// CheckExit implements strategy.ExitPolicy.
func (p *ProfitTarget) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	if position.Shares != position.OriginalShares {
		return types.NoExit(), nil
	}

	target := position.EntryPrice * (1 + p.gainPercent)

	high := currentPrice
	if len(recentBars) > 0 {
		high = recentBars[len(recentBars)-1].High
	}

	if high < target {
		return types.NoExit(), nil
	}

	if p.fraction >= 1 {
		return types.FullExit(target, types.ExitReasonTarget), nil
	}

	return types.PartialExit(p.fraction, target, types.ExitReasonTarget), nil
}
