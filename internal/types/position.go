package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantatrix/backlab/pkg/errors"
)

// Position is an open trade. Shares and StopPrice are the only mutable fields:
// shares shrink through partial exits, and the stop may be advanced by an exit
// policy. Once Shares reaches zero the position is closed and lives on only as
// realized Trade records.
type Position struct {
	ID             string    `yaml:"id" json:"id"`
	Symbol         string    `yaml:"symbol" json:"symbol"`
	EntryDate      time.Time `yaml:"entry_date" json:"entry_date"`
	EntryPrice     float64   `yaml:"entry_price" json:"entry_price"`
	Shares         int64     `yaml:"shares" json:"shares"`
	OriginalShares int64     `yaml:"original_shares" json:"original_shares"`
	StopPrice      float64   `yaml:"stop_price" json:"stop_price"`
	EntryOrderID   string    `yaml:"entry_order_id" json:"entry_order_id"`
}

// Closed reports whether the position has been fully exited.
func (p *Position) Closed() bool {
	return p.Shares <= 0
}

// HoldingDays returns the whole calendar days between the entry date and asOf.
func (p *Position) HoldingDays(asOf time.Time) int {
	return int(asOf.Sub(p.EntryDate).Hours() / 24)
}

// CostBasis returns the remaining shares valued at the entry price.
func (p *Position) CostBasis() float64 {
	basis, _ := decimal.NewFromInt(p.Shares).Mul(decimal.NewFromFloat(p.EntryPrice)).Float64()

	return basis
}

// MarketValue returns the remaining shares valued at the given price.
func (p *Position) MarketValue(price float64) float64 {
	value, _ := decimal.NewFromInt(p.Shares).Mul(decimal.NewFromFloat(price)).Float64()

	return value
}

// UnrealizedPnL returns the open profit of the remaining shares at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	priceDec := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(p.EntryPrice))
	pnl, _ := priceDec.Mul(decimal.NewFromInt(p.Shares)).Float64()

	return pnl
}

// RaiseStop advances the stop price. A stop may only move in the direction that
// reduces risk; lowering it requires an explicit ResetStop.
func (p *Position) RaiseStop(newStop float64) error {
	if newStop < p.StopPrice {
		return errors.Newf(errors.ErrCodeInvalidStopPrice,
			"stop for %s may not move down from %.4f to %.4f", p.Symbol, p.StopPrice, newStop)
	}

	p.StopPrice = newStop

	return nil
}

// ResetStop replaces the stop unconditionally. Exit policies use this for
// deliberate re-anchoring; routine trailing goes through RaiseStop.
func (p *Position) ResetStop(newStop float64) {
	p.StopPrice = newStop
}
