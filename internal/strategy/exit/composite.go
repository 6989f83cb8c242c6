package exit

import (
	"strings"
	"time"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// Composite evaluates sub-policies in the order they were supplied and returns
// the first signal that fires. The evaluation order is part of the contract:
// reordering sub-policies changes simulated outcomes, so callers list them
// from highest to lowest priority.
type Composite struct {
	policies []strategy.ExitPolicy
}

var _ strategy.ExitPolicy = (*Composite)(nil)

// NewComposite creates a composite over the given policies, highest priority
// first.
func NewComposite(policies ...strategy.ExitPolicy) (*Composite, error) {
	if len(policies) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "composite needs at least one policy")
	}

	return &Composite{policies: policies}, nil
}

// Name implements strategy.ExitPolicy.
func (c *Composite) Name() string {
	names := make([]string, 0, len(c.policies))
	for _, policy := range c.policies {
		names = append(names, policy.Name())
	}

	return "composite(" + strings.Join(names, ",") + ")"
}

// InitialStop implements strategy.ExitPolicy. The tightest (highest) stop
// among the sub-policies wins, since that is the most risk-reducing choice
// for a long position.
func (c *Composite) InitialStop(entryPrice float64) float64 {
	stop := 0.0

	for _, policy := range c.policies {
		if s := policy.InitialStop(entryPrice); s > stop {
			stop = s
		}
	}

	return stop
}

// SupportsPartialExits implements strategy.ExitPolicy.
func (c *Composite) SupportsPartialExits() bool {
	for _, policy := range c.policies {
		if policy.SupportsPartialExits() {
			return true
		}
	}

	return false
}

// CheckExit implements strategy.ExitPolicy.
func (c *Composite) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	for _, policy := range c.policies {
		signal, err := policy.CheckExit(position, currentPrice, currentDate, recentBars)
		if err != nil {
			return types.NoExit(), err
		}

		if signal.ShouldExit {
			return signal, nil
		}
	}

	return types.NoExit(), nil
}
