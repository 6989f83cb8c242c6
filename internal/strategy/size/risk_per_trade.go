package size

import (
	"github.com/shopspring/decimal"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// RiskPerTrade sizes positions so the loss at the candidate's stop equals a
// fixed fraction of equity, capped by an allocation ceiling and by cash.
// Candidates without a usable stop are skipped: the sizer cannot bound risk
// without one.
type RiskPerTrade struct {
	riskFraction     float64
	maxAllocFraction float64
}

var _ strategy.PositionSizer = (*RiskPerTrade)(nil)

// NewRiskPerTrade creates a risk-based sizer.
func NewRiskPerTrade(riskFraction, maxAllocFraction float64) (*RiskPerTrade, error) {
	if riskFraction <= 0 || riskFraction > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "risk fraction %.4f outside (0, 1]", riskFraction)
	}

	if maxAllocFraction <= 0 || maxAllocFraction > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "max allocation fraction %.4f outside (0, 1]", maxAllocFraction)
	}

	return &RiskPerTrade{
		riskFraction:     riskFraction,
		maxAllocFraction: maxAllocFraction,
	}, nil
}

// Name implements strategy.PositionSizer.
func (r *RiskPerTrade) Name() string {
	return "risk_per_trade"
}

// Size implements strategy.PositionSizer.
func (r *RiskPerTrade) Size(account types.AccountState, candidate types.Candidate) (types.PositionSize, error) {
	if candidate.EntryPrice <= 0 {
		return types.PositionSize{}, errors.Newf(errors.ErrCodeInvalidCandidate,
			"entry price %.4f must be positive", candidate.EntryPrice)
	}

	riskPerShare := candidate.EntryPrice - candidate.StopPrice
	if candidate.StopPrice <= 0 || riskPerShare <= 0 {
		return types.PositionSize{Shares: 0, CashRequired: 0}, nil
	}

	equity := decimal.NewFromFloat(account.Equity)
	entry := decimal.NewFromFloat(candidate.EntryPrice)

	shares := equity.
		Mul(decimal.NewFromFloat(r.riskFraction)).
		Div(decimal.NewFromFloat(riskPerShare)).
		Floor().
		IntPart()

	// Allocation ceiling and cash cap.
	budget := equity.Mul(decimal.NewFromFloat(r.maxAllocFraction))
	if cash := decimal.NewFromFloat(account.Cash); cash.LessThan(budget) {
		budget = cash
	}

	maxShares := budget.Div(entry).Floor().IntPart()
	if shares > maxShares {
		shares = maxShares
	}

	if shares <= 0 {
		return types.PositionSize{Shares: 0, CashRequired: 0}, nil
	}

	cashRequired, _ := entry.Mul(decimal.NewFromInt(shares)).Float64()

	return types.PositionSize{
		Shares:       shares,
		CashRequired: cashRequired,
	}, nil
}
