package exit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantatrix/backlab/internal/types"
)

type ExitPolicyTestSuite struct {
	suite.Suite
}

func TestExitPolicySuite(t *testing.T) {
	suite.Run(t, new(ExitPolicyTestSuite))
}

var entryDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func (suite *ExitPolicyTestSuite) position(entry, stop float64) *types.Position {
	return &types.Position{
		ID:             "pos-1",
		Symbol:         "AAPL",
		EntryDate:      entryDate,
		EntryPrice:     entry,
		Shares:         100,
		OriginalShares: 100,
		StopPrice:      stop,
	}
}

func dayBar(daysAfterEntry int, open, high, low, close float64) types.Bar {
	return types.Bar{
		Symbol: "AAPL",
		Time:   entryDate.AddDate(0, 0, daysAfterEntry),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1000,
	}
}

func (suite *ExitPolicyTestSuite) TestHardStopFills() {
	policy, err := NewHardStop(0.05)
	suite.NoError(err)
	suite.Equal(95.0, policy.InitialStop(100))
	suite.False(policy.SupportsPartialExits())

	tests := []struct {
		name          string
		bar           types.Bar
		expectedExit  bool
		expectedPrice float64
	}{
		{
			name:         "Holds above the stop",
			bar:          dayBar(1, 99, 101, 96, 100),
			expectedExit: false,
		},
		{
			name:          "Intraday touch fills at the stop",
			bar:           dayBar(1, 98, 99, 94, 96),
			expectedExit:  true,
			expectedPrice: 95,
		},
		{
			name:          "Gap below the stop fills at the open",
			bar:           dayBar(1, 90, 92, 88, 91),
			expectedExit:  true,
			expectedPrice: 90,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			position := suite.position(100, 95)

			signal, err := policy.CheckExit(position, tt.bar.Close, tt.bar.Time, []types.Bar{tt.bar})
			suite.NoError(err)
			suite.Equal(tt.expectedExit, signal.ShouldExit)

			if tt.expectedExit {
				suite.Equal(tt.expectedPrice, signal.Price)
				suite.Equal(types.ExitReasonStopLoss, signal.Reason)
				suite.Equal(1.0, signal.Fraction)
			}
		})
	}
}

func (suite *ExitPolicyTestSuite) TestTrailingStopRatchets() {
	policy, err := NewTrailingStop(0.10)
	suite.NoError(err)

	position := suite.position(100, 90)
	bars := []types.Bar{
		dayBar(0, 100, 101, 99, 100),
		dayBar(1, 105, 121, 104, 120),
	}

	signal, err := policy.CheckExit(position, 120, bars[1].Time, bars)
	suite.NoError(err)
	suite.False(signal.ShouldExit)
	// High-water close of 120 trails the stop up to 108.
	suite.InDelta(108.0, position.StopPrice, 1e-9)

	// A later weak day cannot lower the stop.
	bars = append(bars, dayBar(2, 110, 112, 109, 110))

	signal, err = policy.CheckExit(position, 110, bars[2].Time, bars)
	suite.NoError(err)
	suite.False(signal.ShouldExit)
	suite.InDelta(108.0, position.StopPrice, 1e-9)

	// Breaking the trailed stop exits at the stop.
	bars = append(bars, dayBar(3, 109, 110, 105, 106))

	signal, err = policy.CheckExit(position, 106, bars[3].Time, bars)
	suite.NoError(err)
	suite.True(signal.ShouldExit)
	suite.InDelta(108.0, signal.Price, 1e-9)
	suite.Equal(types.ExitReasonTrailingStop, signal.Reason)
}

func (suite *ExitPolicyTestSuite) TestProfitTargetFiresOnce() {
	policy, err := NewProfitTarget(0.10, 0.5)
	suite.NoError(err)
	suite.True(policy.SupportsPartialExits())

	position := suite.position(100, 95)
	bar := dayBar(1, 105, 112, 104, 108)

	signal, err := policy.CheckExit(position, bar.Close, bar.Time, []types.Bar{bar})
	suite.NoError(err)
	suite.True(signal.ShouldExit)
	suite.Equal(0.5, signal.Fraction)
	suite.InDelta(110.0, signal.Price, 1e-9)
	suite.Equal(types.ExitReasonTarget, signal.Reason)

	// After a partial fill the rule stays quiet for the remainder.
	position.Shares = 50

	signal, err = policy.CheckExit(position, bar.Close, bar.Time, []types.Bar{bar})
	suite.NoError(err)
	suite.False(signal.ShouldExit)
}

func (suite *ExitPolicyTestSuite) TestProfitTargetBelowTargetHolds() {
	policy, err := NewProfitTarget(0.10, 0.5)
	suite.NoError(err)

	position := suite.position(100, 95)
	bar := dayBar(1, 104, 108, 103, 107)

	signal, err := policy.CheckExit(position, bar.Close, bar.Time, []types.Bar{bar})
	suite.NoError(err)
	suite.False(signal.ShouldExit)
}

func (suite *ExitPolicyTestSuite) TestMABreak() {
	policy, err := NewMABreak(3)
	suite.NoError(err)

	position := suite.position(100, 0)

	// Too little history: hold, not a fault.
	bars := []types.Bar{dayBar(0, 100, 101, 99, 100)}
	signal, err := policy.CheckExit(position, 100, bars[0].Time, bars)
	suite.NoError(err)
	suite.False(signal.ShouldExit)

	// Close below the average exits in full.
	bars = []types.Bar{
		dayBar(0, 100, 101, 99, 100),
		dayBar(1, 100, 103, 99, 102),
		dayBar(2, 101, 102, 94, 95),
	}

	signal, err = policy.CheckExit(position, 95, bars[2].Time, bars)
	suite.NoError(err)
	suite.True(signal.ShouldExit)
	suite.Equal(95.0, signal.Price)
	suite.Equal(types.ExitReasonMABreak, signal.Reason)
}

func (suite *ExitPolicyTestSuite) TestTimeLimit() {
	policy, err := NewTimeLimit(10)
	suite.NoError(err)

	position := suite.position(100, 0)

	signal, err := policy.CheckExit(position, 104, entryDate.AddDate(0, 0, 9), nil)
	suite.NoError(err)
	suite.False(signal.ShouldExit)

	signal, err = policy.CheckExit(position, 104, entryDate.AddDate(0, 0, 10), nil)
	suite.NoError(err)
	suite.True(signal.ShouldExit)
	suite.Equal(104.0, signal.Price)
	suite.Equal(types.ExitReasonTimeLimit, signal.Reason)
}

func (suite *ExitPolicyTestSuite) TestCompositePriorityOrder() {
	hardStop, err := NewHardStop(0.05)
	suite.NoError(err)

	target, err := NewProfitTarget(0.10, 0.5)
	suite.NoError(err)

	composite, err := NewComposite(hardStop, target)
	suite.NoError(err)
	suite.Equal("composite(hard_stop,profit_target)", composite.Name())
	suite.True(composite.SupportsPartialExits())
	suite.Equal(95.0, composite.InitialStop(100))

	// A day that both breaks the stop and tags the target resolves in favor
	// of the first-listed policy.
	position := suite.position(100, 95)
	bar := dayBar(1, 98, 111, 94, 96)

	signal, err := composite.CheckExit(position, bar.Close, bar.Time, []types.Bar{bar})
	suite.NoError(err)
	suite.True(signal.ShouldExit)
	suite.Equal(types.ExitReasonStopLoss, signal.Reason)
	suite.Equal(95.0, signal.Price)

	reversed, err := NewComposite(target, hardStop)
	suite.NoError(err)

	position = suite.position(100, 95)

	signal, err = reversed.CheckExit(position, bar.Close, bar.Time, []types.Bar{bar})
	suite.NoError(err)
	suite.Equal(types.ExitReasonTarget, signal.Reason)
	suite.InDelta(110.0, signal.Price, 1e-9)
}

func (suite *ExitPolicyTestSuite) TestCompositeInitialStopTakesTightest() {
	hardStop, err := NewHardStop(0.05)
	suite.NoError(err)

	trailing, err := NewTrailingStop(0.08)
	suite.NoError(err)

	composite, err := NewComposite(trailing, hardStop)
	suite.NoError(err)

	// 95 from the hard stop beats 92 from the trail.
	suite.InDelta(95.0, composite.InitialStop(100), 1e-9)
}

func (suite *ExitPolicyTestSuite) TestCompositeRequiresPolicies() {
	_, err := NewComposite()
	suite.Error(err)
}

func (suite *ExitPolicyTestSuite) TestInvalidParameters() {
	_, err := NewHardStop(0)
	suite.Error(err)

	_, err = NewTrailingStop(1)
	suite.Error(err)

	_, err = NewProfitTarget(-0.1, 0.5)
	suite.Error(err)

	_, err = NewProfitTarget(0.1, 1.5)
	suite.Error(err)

	_, err = NewMABreak(0)
	suite.Error(err)

	_, err = NewTimeLimit(0)
	suite.Error(err)
}
