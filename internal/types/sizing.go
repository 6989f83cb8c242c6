package types

// PositionSize is the output of a position sizer. Zero shares means
// "skip this candidate", typically for insufficient buying power.
type PositionSize struct {
	Shares       int64   `yaml:"shares" json:"shares"`
	CashRequired float64 `yaml:"cash_required" json:"cash_required"`
}

// Skip reports whether the sizer declined the candidate.
func (s PositionSize) Skip() bool {
	return s.Shares <= 0
}

// AccountState is the snapshot a sizer receives when sizing a candidate.
type AccountState struct {
	// Cash is the buying power currently available.
	Cash float64 `yaml:"cash" json:"cash"`
	// Equity is cash plus the market value of open positions as of the last mark.
	Equity float64 `yaml:"equity" json:"equity"`
	// OpenPositions is the number of currently open positions.
	OpenPositions int `yaml:"open_positions" json:"open_positions"`
	// MaxPositions is the configured concurrent position cap.
	MaxPositions int `yaml:"max_positions" json:"max_positions"`
}
