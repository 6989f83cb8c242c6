package engine

import (
	"math"

	"github.com/quantatrix/backlab/internal/types"
)

// ComputeMetrics derives the aggregate statistics from the realized trades and
// the equity curve. It is a pure function and safe on zero-trade runs: ratios
// with empty denominators report zero, except the profit factor of a run with
// winners and no losers, which is +Inf.
func ComputeMetrics(startingCapital float64, trades []types.Trade, curve []types.EquityPoint) types.Metrics {
	metrics := types.Metrics{
		TotalTrades: len(trades),
	}

	endingCapital := startingCapital
	if len(curve) > 0 {
		endingCapital = curve[len(curve)-1].Equity
	}

	if startingCapital > 0 {
		metrics.TotalReturnPercent = (endingCapital/startingCapital - 1) * 100
	}

	totalPnL := 0.0
	totalHoldDays := 0

	for _, trade := range trades {
		totalPnL += trade.PnL
		totalHoldDays += trade.HoldingDays

		if trade.Winning() {
			metrics.WinningTrades++
			metrics.GrossProfit += trade.PnL
		} else {
			metrics.LosingTrades++
			metrics.GrossLoss += -trade.PnL
		}
	}

	if len(trades) > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(len(trades)) * 100
		metrics.Expectancy = totalPnL / float64(len(trades))
		metrics.AvgHoldDays = float64(totalHoldDays) / float64(len(trades))
	}

	switch {
	case metrics.GrossLoss > 0:
		metrics.ProfitFactor = metrics.GrossProfit / metrics.GrossLoss
	case metrics.GrossProfit > 0:
		metrics.ProfitFactor = math.Inf(1)
	}

	metrics.MaxDrawdownPercent = maxDrawdownPercent(curve)

	return metrics
}

// maxDrawdownPercent returns the largest peak-to-trough equity decline as a
// positive percentage.
func maxDrawdownPercent(curve []types.EquityPoint) float64 {
	peak := 0.0
	maxDrawdown := 0.0

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak <= 0 {
			continue
		}

		drawdown := (peak - point.Equity) / peak * 100
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}
