package engine

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/quantatrix/backlab/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

const validConfigYAML = `
strategy_name: momentum-daily
starting_capital: 100000
max_positions: 5
start: "2024-01-02"
end: "2024-06-28"
symbols:
  - AAPL
  - MSFT
max_consecutive_faults: 5
scanner:
  name: momentum
  params:
    lookback_days: 20
    min_return: 0.05
exits:
  - name: hard_stop
    params:
      risk_percent: 0.05
  - name: profit_target
    params:
      gain_percent: 0.10
      fraction: 0.5
sizer:
  name: fixed_fraction
  params:
    fraction: 0.10
`

func (suite *ConfigTestSuite) TestParseValidConfig() {
	config, err := ParseConfig([]byte(validConfigYAML))
	suite.NoError(err)
	suite.Equal("momentum-daily", config.StrategyName)
	suite.Equal(100000.0, config.StartingCapital)
	suite.Equal(5, config.MaxPositions)
	suite.Equal([]string{"AAPL", "MSFT"}, config.Symbols)
	suite.Equal(5, config.MaxConsecutiveFaults)
	suite.Equal("momentum", config.Scanner.Name)
	suite.Len(config.Exits, 2)
	suite.Equal("hard_stop", config.Exits[0].Name)
	suite.Equal("fixed_fraction", config.Sizer.Name)

	lookback, err := config.Scanner.Params.Int("lookback_days", 0)
	suite.NoError(err)
	suite.Equal(20, lookback)

	suite.True(config.StartDate().Before(config.EndDate()))
}

func (suite *ConfigTestSuite) TestParseInvalidConfigs() {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "Malformed YAML",
			yaml: "strategy_name: [unclosed",
		},
		{
			name: "Missing starting capital",
			yaml: `
strategy_name: x
max_positions: 1
start: "2024-01-02"
end: "2024-06-28"
symbols: [AAPL]
scanner: {name: momentum}
exits: [{name: hard_stop}]
sizer: {name: fixed_fraction}
`,
		},
		{
			name: "Zero max positions",
			yaml: `
strategy_name: x
starting_capital: 1000
max_positions: 0
start: "2024-01-02"
end: "2024-06-28"
symbols: [AAPL]
scanner: {name: momentum}
exits: [{name: hard_stop}]
sizer: {name: fixed_fraction}
`,
		},
		{
			name: "Bad date format",
			yaml: `
strategy_name: x
starting_capital: 1000
max_positions: 1
start: "02/01/2024"
end: "2024-06-28"
symbols: [AAPL]
scanner: {name: momentum}
exits: [{name: hard_stop}]
sizer: {name: fixed_fraction}
`,
		},
		{
			name: "Start not before end",
			yaml: `
strategy_name: x
starting_capital: 1000
max_positions: 1
start: "2024-06-28"
end: "2024-06-28"
symbols: [AAPL]
scanner: {name: momentum}
exits: [{name: hard_stop}]
sizer: {name: fixed_fraction}
`,
		},
		{
			name: "Empty symbols",
			yaml: `
strategy_name: x
starting_capital: 1000
max_positions: 1
start: "2024-01-02"
end: "2024-06-28"
symbols: []
scanner: {name: momentum}
exits: [{name: hard_stop}]
sizer: {name: fixed_fraction}
`,
		},
		{
			name: "No exits",
			yaml: `
strategy_name: x
starting_capital: 1000
max_positions: 1
start: "2024-01-02"
end: "2024-06-28"
symbols: [AAPL]
scanner: {name: momentum}
exits: []
sizer: {name: fixed_fraction}
`,
		},
		{
			name: "Negative fault budget",
			yaml: `
strategy_name: x
starting_capital: 1000
max_positions: 1
start: "2024-01-02"
end: "2024-06-28"
symbols: [AAPL]
max_consecutive_faults: -1
scanner: {name: momentum}
exits: [{name: hard_stop}]
sizer: {name: fixed_fraction}
`,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := ParseConfig([]byte(tt.yaml))
			suite.Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
		})
	}
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	schema, err := GenerateSchemaJSON()
	suite.NoError(err)
	suite.Contains(schema, "starting_capital")
	suite.Contains(schema, "max_positions")
	suite.Contains(schema, "exits")
}
