package exit

import "github.com/quantatrix/backlab/internal/strategy"

// Register adds the built-in exit policies to the registry. Call it once at
// startup; there is no import-time registration.
func Register(registry *strategy.Registry) error {
	factories := map[string]strategy.ExitPolicyFactory{
		"hard_stop": func(env strategy.Env, params strategy.Params) (strategy.ExitPolicy, error) {
			riskPercent, err := params.Float("risk_percent", 0.05)
			if err != nil {
				return nil, err
			}

			return NewHardStop(riskPercent)
		},
		"trailing_stop": func(env strategy.Env, params strategy.Params) (strategy.ExitPolicy, error) {
			trailPercent, err := params.Float("trail_percent", 0.08)
			if err != nil {
				return nil, err
			}

			return NewTrailingStop(trailPercent)
		},
		"profit_target": func(env strategy.Env, params strategy.Params) (strategy.ExitPolicy, error) {
			gainPercent, err := params.Float("gain_percent", 0.10)
			if err != nil {
				return nil, err
			}

			fraction, err := params.Float("fraction", 0.5)
			if err != nil {
				return nil, err
			}

			return NewProfitTarget(gainPercent, fraction)
		},
		"ma_break": func(env strategy.Env, params strategy.Params) (strategy.ExitPolicy, error) {
			period, err := params.Int("period", 20)
			if err != nil {
				return nil, err
			}

			return NewMABreak(period)
		},
		"time_limit": func(env strategy.Env, params strategy.Params) (strategy.ExitPolicy, error) {
			maxDays, err := params.Int("max_days", 30)
			if err != nil {
				return nil, err
			}

			return NewTimeLimit(maxDays)
		},
	}

	for name, factory := range factories {
		if err := registry.RegisterExitPolicy(name, factory); err != nil {
			return err
		}
	}

	return nil
}
