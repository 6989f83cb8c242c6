package scan

import (
	"github.com/quantatrix/backlab/internal/strategy"
)

// Register adds the built-in scanners to the registry.
func Register(registry *strategy.Registry) error {
	return registry.RegisterScanner("momentum", func(env strategy.Env, params strategy.Params) (strategy.Scanner, error) {
		symbols, err := params.Strings("symbols", nil)
		if err != nil {
			return nil, err
		}

		lookbackDays, err := params.Int("lookback_days", 20)
		if err != nil {
			return nil, err
		}

		minReturn, err := params.Float("min_return", 0.05)
		if err != nil {
			return nil, err
		}

		atrPeriod, err := params.Int("atr_period", 14)
		if err != nil {
			return nil, err
		}

		atrStopMultiple, err := params.Float("atr_stop_multiple", 2.0)
		if err != nil {
			return nil, err
		}

		return NewMomentum(env, symbols, lookbackDays, minReturn, atrPeriod, atrStopMultiple)
	})
}
