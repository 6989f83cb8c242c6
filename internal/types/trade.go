package types

import "time"

// Trade is an immutable record of a realized (full or partial) exit.
// The set of trades plus the equity curve is the sole input to metrics.
type Trade struct {
	ID          string     `yaml:"id" json:"id" csv:"id"`
	PositionID  string     `yaml:"position_id" json:"position_id" csv:"position_id"`
	Symbol      string     `yaml:"symbol" json:"symbol" csv:"symbol"`
	EntryDate   time.Time  `yaml:"entry_date" json:"entry_date" csv:"entry_date"`
	EntryPrice  float64    `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitDate    time.Time  `yaml:"exit_date" json:"exit_date" csv:"exit_date"`
	ExitPrice   float64    `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	Shares      int64      `yaml:"shares" json:"shares" csv:"shares"`
	PnL         float64    `yaml:"pnl" json:"pnl" csv:"pnl"`
	Reason      ExitReason `yaml:"reason" json:"reason" csv:"reason"`
	HoldingDays int        `yaml:"holding_days" json:"holding_days" csv:"holding_days"`
}

// Winning reports whether the trade realized a positive profit.
func (t Trade) Winning() bool {
	return t.PnL > 0
}
