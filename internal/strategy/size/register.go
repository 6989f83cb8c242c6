package size

import "github.com/quantatrix/backlab/internal/strategy"

// Register adds the built-in sizers to the registry.
func Register(registry *strategy.Registry) error {
	factories := map[string]strategy.SizerFactory{
		"fixed_fraction": func(env strategy.Env, params strategy.Params) (strategy.PositionSizer, error) {
			fraction, err := params.Float("fraction", 0.10)
			if err != nil {
				return nil, err
			}

			return NewFixedFraction(fraction)
		},
		"risk_per_trade": func(env strategy.Env, params strategy.Params) (strategy.PositionSizer, error) {
			riskFraction, err := params.Float("risk_fraction", 0.01)
			if err != nil {
				return nil, err
			}

			maxAllocFraction, err := params.Float("max_alloc_fraction", 0.25)
			if err != nil {
				return nil, err
			}

			return NewRiskPerTrade(riskFraction, maxAllocFraction)
		},
	}

	for name, factory := range factories {
		if err := registry.RegisterSizer(name, factory); err != nil {
			return err
		}
	}

	return nil
}
