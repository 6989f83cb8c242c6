package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// Portfolio tracks cash, open positions, and realized trades for one run.
// Cash arithmetic goes through decimals so repeated entries and exits cannot
// accumulate float drift. Open positions keep entry order; the engine relies
// on that for oldest-first exit evaluation.
//
// IDs are derived from the run ID, so two identical runs produce identical
// position and trade IDs.
type Portfolio struct {
	cash         decimal.Decimal
	lastEquity   float64
	open         []*types.Position
	trades       []types.Trade
	equityCurve  []types.EquityPoint
	maxPositions int
	lastMark     time.Time
	runID        uuid.UUID
	positionSeq  int
	tradeSeq     int
	logger       *logger.Logger
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(startingCapital float64, maxPositions int, runID uuid.UUID, l *logger.Logger) (*Portfolio, error) {
	if startingCapital <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"starting capital %.2f must be positive", startingCapital)
	}

	if maxPositions < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"max positions %d must be at least 1", maxPositions)
	}

	return &Portfolio{
		cash:         decimal.NewFromFloat(startingCapital),
		lastEquity:   startingCapital,
		open:         make([]*types.Position, 0, maxPositions),
		trades:       []types.Trade{},
		equityCurve:  []types.EquityPoint{},
		maxPositions: maxPositions,
		runID:        runID,
		logger:       l,
	}, nil
}

// Cash returns the available buying power.
func (p *Portfolio) Cash() float64 {
	cash, _ := p.cash.Float64()

	return cash
}

// OpenPositions returns the open positions in entry order, oldest first.
func (p *Portfolio) OpenPositions() []*types.Position {
	out := make([]*types.Position, len(p.open))
	copy(out, p.open)

	return out
}

// Position returns the open position for symbol, if any.
func (p *Portfolio) Position(symbol string) (*types.Position, bool) {
	for _, position := range p.open {
		if position.Symbol == symbol {
			return position, true
		}
	}

	return nil, false
}

// AccountState returns the snapshot handed to position sizers. Equity reflects
// the most recent mark-to-market.
func (p *Portfolio) AccountState() types.AccountState {
	return types.AccountState{
		Cash:          p.Cash(),
		Equity:        p.lastEquity,
		OpenPositions: len(p.open),
		MaxPositions:  p.maxPositions,
	}
}

// Trades returns the realized trades in the order they closed.
func (p *Portfolio) Trades() []types.Trade {
	return p.trades
}

// EquityCurve returns the end-of-day equity samples in date order.
func (p *Portfolio) EquityCurve() []types.EquityPoint {
	return p.equityCurve
}

// OpenPosition admits a sized candidate. Capacity, duplicate symbol, and cash
// violations come back as coded errors so the engine can record them as
// rejections instead of faults.
func (p *Portfolio) OpenPosition(candidate types.Candidate, size types.PositionSize, entryDate time.Time, initialStop float64) (*types.Position, error) {
	if len(p.open) >= p.maxPositions {
		return nil, errors.Newf(errors.ErrCodeMaxPositionsReached,
			"%d of %d positions already open", len(p.open), p.maxPositions)
	}

	if _, exists := p.Position(candidate.Symbol); exists {
		return nil, errors.Newf(errors.ErrCodePositionAlreadyOpen,
			"position for %s already open", candidate.Symbol)
	}

	if size.Skip() {
		return nil, errors.Newf(errors.ErrCodeSizingRejected,
			"sizer returned zero shares for %s", candidate.Symbol)
	}

	cost := decimal.NewFromFloat(size.CashRequired)
	if cost.GreaterThan(p.cash) {
		return nil, errors.Newf(errors.ErrCodeInsufficientCash,
			"%s needs %.2f, have %.2f", candidate.Symbol, size.CashRequired, p.Cash())
	}

	p.positionSeq++

	position := &types.Position{
		ID:             uuid.NewSHA1(p.runID, []byte(fmt.Sprintf("position-%d", p.positionSeq))).String(),
		Symbol:         candidate.Symbol,
		EntryDate:      entryDate,
		EntryPrice:     candidate.EntryPrice,
		Shares:         size.Shares,
		OriginalShares: size.Shares,
		StopPrice:      initialStop,
		EntryOrderID:   uuid.NewSHA1(p.runID, []byte(fmt.Sprintf("order-%d", p.positionSeq))).String(),
	}

	p.cash = p.cash.Sub(cost)
	p.open = append(p.open, position)

	p.logger.Debug("opened position",
		zap.String("symbol", position.Symbol),
		zap.Int64("shares", position.Shares),
		zap.Float64("entry_price", position.EntryPrice),
		zap.Float64("stop_price", position.StopPrice))

	return position, nil
}

// ApplyExit liquidates part or all of a position per the signal. Partial
// fractions are taken against the original size, rounded to whole shares, and
// clamped to what remains; the stop carries over unchanged for the remainder.
// A fraction that rounds to zero shares is a no-op and returns None.
func (p *Portfolio) ApplyExit(position *types.Position, signal types.ExitSignal, date time.Time) (optional.Option[types.Trade], error) {
	if err := signal.Validate(); err != nil {
		return optional.None[types.Trade](), err
	}

	index := -1

	for i, open := range p.open {
		if open == position {
			index = i

			break
		}
	}

	if index < 0 {
		return optional.None[types.Trade](), errors.Newf(errors.ErrCodePositionNotFound,
			"position %s for %s is not open", position.ID, position.Symbol)
	}

	shares := int64(math.Round(signal.Fraction * float64(position.OriginalShares)))
	if shares > position.Shares {
		shares = position.Shares
	}

	if shares <= 0 {
		p.logger.Debug("exit fraction rounded to zero shares",
			zap.String("symbol", position.Symbol),
			zap.Float64("fraction", signal.Fraction))

		return optional.None[types.Trade](), nil
	}

	sharesDec := decimal.NewFromInt(shares)
	proceeds := sharesDec.Mul(decimal.NewFromFloat(signal.Price))
	pnl, _ := decimal.NewFromFloat(signal.Price).
		Sub(decimal.NewFromFloat(position.EntryPrice)).
		Mul(sharesDec).
		Float64()

	p.cash = p.cash.Add(proceeds)
	position.Shares -= shares

	if position.Closed() {
		p.open = append(p.open[:index], p.open[index+1:]...)
	}

	p.tradeSeq++

	trade := types.Trade{
		ID:          uuid.NewSHA1(p.runID, []byte(fmt.Sprintf("trade-%d", p.tradeSeq))).String(),
		PositionID:  position.ID,
		Symbol:      position.Symbol,
		EntryDate:   position.EntryDate,
		EntryPrice:  position.EntryPrice,
		ExitDate:    date,
		ExitPrice:   signal.Price,
		Shares:      shares,
		PnL:         pnl,
		Reason:      signal.Reason,
		HoldingDays: position.HoldingDays(date),
	}

	p.trades = append(p.trades, trade)

	p.logger.Debug("applied exit",
		zap.String("symbol", position.Symbol),
		zap.Int64("shares", shares),
		zap.Int64("remaining", position.Shares),
		zap.Float64("pnl", pnl),
		zap.String("reason", string(signal.Reason)))

	return optional.Some(trade), nil
}

// MarkToMarket values the portfolio at end of day and appends an equity point.
// prices must cover every open symbol. Each day is marked exactly once, in
// date order.
func (p *Portfolio) MarkToMarket(date time.Time, prices map[string]float64) (types.EquityPoint, error) {
	if !p.lastMark.IsZero() && !date.After(p.lastMark) {
		return types.EquityPoint{}, errors.Newf(errors.ErrCodeDataOutOfOrder,
			"mark for %s not after previous mark %s",
			date.Format(dateLayout), p.lastMark.Format(dateLayout))
	}

	equity := p.cash

	for _, position := range p.open {
		price, ok := prices[position.Symbol]
		if !ok {
			return types.EquityPoint{}, errors.Newf(errors.ErrCodeDataUnavailable,
				"no mark price for open position %s", position.Symbol)
		}

		equity = equity.Add(decimal.NewFromInt(position.Shares).Mul(decimal.NewFromFloat(price)))
	}

	value, _ := equity.Float64()

	point := types.EquityPoint{Date: date, Equity: value}
	p.equityCurve = append(p.equityCurve, point)
	p.lastEquity = value
	p.lastMark = date

	return point, nil
}
