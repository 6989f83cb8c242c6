package engine

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v2"

	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/pkg/errors"
)

const dateLayout = "2006-01-02"

// ComponentConfig names one pluggable strategy component and its parameters.
type ComponentConfig struct {
	Name   string          `yaml:"name" json:"name" jsonschema:"description=Registered component name" validate:"required"`
	Params strategy.Params `yaml:"params" json:"params" jsonschema:"description=Free-form component parameters"`
}

// Config is the full description of one backtest run, decoded from YAML.
// Invalid configuration fails fast before any bar is loaded.
type Config struct {
	StrategyName    string  `yaml:"strategy_name" json:"strategy_name" jsonschema:"description=Label carried into results" validate:"required"`
	StartingCapital float64 `yaml:"starting_capital" json:"starting_capital" jsonschema:"description=Initial cash" validate:"required,gt=0"`
	MaxPositions    int     `yaml:"max_positions" json:"max_positions" jsonschema:"description=Concurrent position cap" validate:"required,gte=1"`
	Start           string  `yaml:"start" json:"start" jsonschema:"description=First simulated day (YYYY-MM-DD)" validate:"required,datetime=2006-01-02"`
	End             string  `yaml:"end" json:"end" jsonschema:"description=Last simulated day (YYYY-MM-DD)" validate:"required,datetime=2006-01-02"`
	// Symbols is the tradable universe. Scanners without an explicit universe
	// of their own inherit it.
	Symbols []string `yaml:"symbols" json:"symbols" jsonschema:"description=Symbol universe" validate:"required,min=1,dive,required"`
	// MaxConsecutiveFaults aborts the run after this many consecutive faulty
	// days. Zero disables the budget.
	MaxConsecutiveFaults int             `yaml:"max_consecutive_faults" json:"max_consecutive_faults" jsonschema:"description=Consecutive faulty days before abort (0 disables)" validate:"gte=0"`
	Scanner              ComponentConfig `yaml:"scanner" json:"scanner" validate:"required"`
	// Exits are evaluated in listed order; the first signal that fires wins.
	Exits []ComponentConfig `yaml:"exits" json:"exits" validate:"required,min=1,dive"`
	Sizer ComponentConfig   `yaml:"sizer" json:"sizer" validate:"required"`
}

// ParseConfig decodes and validates a YAML run configuration.
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config YAML", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration, including cross-field constraints the
// struct tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if !c.StartDate().Before(c.EndDate()) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"start %s must be before end %s", c.Start, c.End)
	}

	return nil
}

// StartDate returns the parsed start day at midnight UTC. The config must have
// been validated first.
func (c *Config) StartDate() time.Time {
	t, _ := time.Parse(dateLayout, c.Start)

	return t
}

// EndDate returns the parsed end day at midnight UTC. The config must have
// been validated first.
func (c *Config) EndDate() time.Time {
	t, _ := time.Parse(dateLayout, c.End)

	return t
}

// GenerateSchemaJSON returns the JSON schema for the config file format, used
// by editors for completion and validation.
func GenerateSchemaJSON() (string, error) {
	reflector := new(jsonschema.Reflector)
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return string(data), nil
}
