// Package strategy defines the pluggable contracts the backtest engine drives:
// entry scanners, exit policies, and position sizers. Implementations must be
// deterministic given identical inputs; reproducible backtests depend on it.
package strategy

import (
	"context"
	"time"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
)

// Scanner produces entry candidates for one simulated day.
type Scanner interface {
	// StrategyName identifies the scanner for results and diagnostics.
	StrategyName() string
	// Scan returns zero or more candidates for the given date. Returning an
	// empty slice is the normal "no signal" outcome, not an error.
	Scan(ctx context.Context, date time.Time) ([]types.Candidate, error)
}

// ExitPolicy decides whether an open position should be reduced or closed.
type ExitPolicy interface {
	// Name identifies the policy.
	Name() string
	// CheckExit evaluates one position on one day. recentBars holds the
	// position's bar history up to and including the current day, ascending.
	// The policy may mutate the position's stop state (e.g. trail it); all
	// other effects flow through the returned signal.
	CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error)
	// InitialStop returns the protective stop for a fresh entry at entryPrice.
	// Zero means the policy sets no initial stop.
	InitialStop(entryPrice float64) float64
	// SupportsPartialExits reports whether the policy may emit fractions < 1.
	// The engine treats fractional signals from non-supporting policies as
	// full exits.
	SupportsPartialExits() bool
}

// PositionSizer converts a candidate into a share count and cash allocation.
type PositionSizer interface {
	// Name identifies the sizer.
	Name() string
	// Size returns the position size for the candidate given the current
	// account state. Zero shares means "skip this candidate".
	Size(account types.AccountState, candidate types.Candidate) (types.PositionSize, error)
}

// Env carries the shared dependencies a factory may need to build a component.
type Env struct {
	Bars   bardata.Store
	Logger *logger.Logger
}

// Params is the free-form configuration passed to a factory, typically decoded
// from the strategy section of a YAML config file.
type Params map[string]any

// ScannerFactory builds a scanner from an environment and parameters.
type ScannerFactory func(env Env, params Params) (Scanner, error)

// ExitPolicyFactory builds an exit policy from an environment and parameters.
type ExitPolicyFactory func(env Env, params Params) (ExitPolicy, error)

// SizerFactory builds a position sizer from an environment and parameters.
type SizerFactory func(env Env, params Params) (PositionSizer, error)
