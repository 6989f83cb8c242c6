// Package size provides the built-in position sizers.
package size

import (
	"github.com/shopspring/decimal"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// FixedFraction allocates a fixed fraction of current equity to each entry,
// capped by available cash. Whole shares only; a candidate that cannot afford
// a single share is skipped.
type FixedFraction struct {
	fraction float64
}

var _ strategy.PositionSizer = (*FixedFraction)(nil)

// NewFixedFraction creates a sizer allocating fraction of equity per position.
func NewFixedFraction(fraction float64) (*FixedFraction, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "fraction %.4f outside (0, 1]", fraction)
	}

	return &FixedFraction{fraction: fraction}, nil
}

// Name implements strategy.PositionSizer.
func (f *FixedFraction) Name() string {
	return "fixed_fraction"
}

// Size implements strategy.PositionSizer.
func (f *FixedFraction) Size(account types.AccountState, candidate types.Candidate) (types.PositionSize, error) {
	if candidate.EntryPrice <= 0 {
		return types.PositionSize{}, errors.Newf(errors.ErrCodeInvalidCandidate,
			"entry price %.4f must be positive", candidate.EntryPrice)
	}

	allocation := decimal.NewFromFloat(account.Equity).Mul(decimal.NewFromFloat(f.fraction))

	budget := decimal.NewFromFloat(account.Cash)
	if allocation.LessThan(budget) {
		budget = allocation
	}

	entry := decimal.NewFromFloat(candidate.EntryPrice)
	shares := budget.Div(entry).Floor().IntPart()

	if shares <= 0 {
		return types.PositionSize{Shares: 0, CashRequired: 0}, nil
	}

	cashRequired, _ := entry.Mul(decimal.NewFromInt(shares)).Float64()

	return types.PositionSize{
		Shares:       shares,
		CashRequired: cashRequired,
	}, nil
}
