package types

import "github.com/quantatrix/backlab/pkg/errors"

// ExitReason classifies why a position (or part of one) was liquidated.
type ExitReason string

const (
	ExitReasonStopLoss      ExitReason = "stop_loss"
	ExitReasonTrailingStop  ExitReason = "trailing_stop"
	ExitReasonTarget        ExitReason = "target"
	ExitReasonMABreak       ExitReason = "moving_average_break"
	ExitReasonTimeLimit     ExitReason = "time_limit"
	ExitReasonEndOfBacktest ExitReason = "end_of_backtest"
)

// ExitSignal is the output of an exit policy for one position on one day.
// It carries no side effects; the engine applies it through the portfolio.
type ExitSignal struct {
	// ShouldExit is true when any liquidation occurs.
	ShouldExit bool `yaml:"should_exit" json:"should_exit"`
	// Fraction of the original position size to liquidate, in (0, 1].
	Fraction float64 `yaml:"fraction" json:"fraction"`
	// Price is the simulated fill price for the exit.
	Price float64 `yaml:"price" json:"price"`
	// Reason classifies the exit.
	Reason ExitReason `yaml:"reason" json:"reason"`
}

// NoExit returns the signal for "hold".
func NoExit() ExitSignal {
	return ExitSignal{
		ShouldExit: false,
		Fraction:   0,
		Price:      0,
		Reason:     "",
	}
}

// FullExit returns a signal liquidating the entire position at price.
func FullExit(price float64, reason ExitReason) ExitSignal {
	return ExitSignal{
		ShouldExit: true,
		Fraction:   1,
		Price:      price,
		Reason:     reason,
	}
}

// PartialExit returns a signal liquidating fraction of the original position at price.
func PartialExit(fraction, price float64, reason ExitReason) ExitSignal {
	return ExitSignal{
		ShouldExit: true,
		Fraction:   fraction,
		Price:      price,
		Reason:     reason,
	}
}

// Validate checks the signal's internal consistency.
func (s ExitSignal) Validate() error {
	if !s.ShouldExit {
		return nil
	}

	if s.Fraction <= 0 || s.Fraction > 1 {
		return errors.Newf(errors.ErrCodeInvalidExitSignal, "exit fraction %.4f outside (0, 1]", s.Fraction)
	}

	if s.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidExitSignal, "exit price %.4f must be positive", s.Price)
	}

	if s.Reason == "" {
		return errors.New(errors.ErrCodeInvalidExitSignal, "exit reason is required")
	}

	return nil
}
