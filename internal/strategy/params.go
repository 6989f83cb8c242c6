package strategy

import "github.com/quantatrix/backlab/pkg/errors"

// Float reads a numeric parameter, falling back to def when absent. YAML
// decoding may deliver numbers as int or float64.
func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q must be numeric, got %T", key, raw)
	}
}

// Int reads an integer parameter, falling back to def when absent.
func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q must be an integer, got %T", key, raw)
	}
}

// Strings reads a string-list parameter, falling back to def when absent.
func (p Params) Strings(key string, def []string) ([]string, error) {
	raw, ok := p[key]
	if !ok {
		return def, nil
	}

	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q must be a string list", key)
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q must be a string list, got %T", key, raw)
	}
}
