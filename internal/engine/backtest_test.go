package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

type BacktestTestSuite struct {
	suite.Suite
}

func TestBacktestSuite(t *testing.T) {
	suite.Run(t, new(BacktestTestSuite))
}

// memStore serves canned daily bars keyed by symbol.
type memStore struct {
	bars map[string][]types.Bar
}

func (m *memStore) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	var out []types.Bar

	for _, bar := range m.bars[symbol] {
		if !bar.Time.Before(start) && !bar.Time.After(end) {
			out = append(out, bar)
		}
	}

	return out, nil
}

func (m *memStore) IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error) {
	return nil, nil
}

// scriptScanner emits pre-scripted candidates keyed by day.
type scriptScanner struct {
	byDay map[string][]types.Candidate
}

func (s *scriptScanner) StrategyName() string { return "script" }

func (s *scriptScanner) Scan(ctx context.Context, date time.Time) ([]types.Candidate, error) {
	return s.byDay[date.Format(dateLayout)], nil
}

// failScanner fails every scan.
type failScanner struct{}

func (f *failScanner) StrategyName() string { return "fail" }

func (f *failScanner) Scan(ctx context.Context, date time.Time) ([]types.Candidate, error) {
	return nil, errors.New(errors.ErrCodeScannerFault, "scripted scanner failure")
}

// scriptExit replays pre-scripted exit signals keyed by symbol and day.
type scriptExit struct {
	partial bool
	signals map[string]types.ExitSignal
}

func exitKey(symbol string, day time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, day.Format(dateLayout))
}

func (s *scriptExit) Name() string { return "script" }

func (s *scriptExit) InitialStop(entryPrice float64) float64 { return 0 }

func (s *scriptExit) SupportsPartialExits() bool { return s.partial }

func (s *scriptExit) CheckExit(position *types.Position, currentPrice float64, currentDate time.Time, recentBars []types.Bar) (types.ExitSignal, error) {
	if signal, ok := s.signals[exitKey(position.Symbol, currentDate)]; ok {
		return signal, nil
	}

	return types.NoExit(), nil
}

// fixedSizer buys a fixed share count at the candidate's entry price.
type fixedSizer struct {
	shares int64
}

func (f *fixedSizer) Name() string { return "fixed" }

func (f *fixedSizer) Size(account types.AccountState, candidate types.Candidate) (types.PositionSize, error) {
	return types.PositionSize{
		Shares:       f.shares,
		CashRequired: candidate.EntryPrice * float64(f.shares),
	}, nil
}

func (suite *BacktestTestSuite) config(maxPositions int) *Config {
	return &Config{
		StrategyName:    "script",
		StartingCapital: 100000,
		MaxPositions:    maxPositions,
		Start:           "2024-03-04",
		End:             "2024-03-08",
		Symbols:         []string{"AAPL", "MSFT"},
		Scanner:         ComponentConfig{Name: "script"},
		Exits:           []ComponentConfig{{Name: "script"}},
		Sizer:           ComponentConfig{Name: "fixed"},
	}
}

func day(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)

	return t
}

// flatBars yields one bar per day at a constant price.
func flatBars(symbol string, price float64, days ...string) []types.Bar {
	bars := make([]types.Bar, 0, len(days))

	for _, d := range days {
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   day(d),
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1000,
		})
	}

	return bars
}

func (suite *BacktestTestSuite) candidate(symbol string, scanDay string, entry float64) types.Candidate {
	return types.Candidate{
		Symbol:     symbol,
		ScanDate:   day(scanDay),
		Score:      1,
		EntryPrice: entry,
	}
}

var week = []string{"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07", "2024-03-08"}

func (suite *BacktestTestSuite) TestSingleCleanTrade() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	scanner := &scriptScanner{byDay: map[string][]types.Candidate{
		"2024-03-04": {suite.candidate("AAPL", "2024-03-04", 100)},
	}}

	exitPolicy := &scriptExit{signals: map[string]types.ExitSignal{
		exitKey("AAPL", day("2024-03-06")): types.FullExit(110, types.ExitReasonTarget),
	}}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    scanner,
		ExitPolicy: exitPolicy,
		Sizer:      &fixedSizer{shares: 100},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.False(results.Aborted)
	suite.Len(results.Trades, 1)
	suite.Equal(101000.0, results.EndingCapital)
	suite.Equal(1000.0, results.Trades[0].PnL)
	suite.Equal(types.ExitReasonTarget, results.Trades[0].Reason)
	suite.Len(results.EquityCurve, 5)
	suite.Equal(101000.0, results.EquityCurve[4].Equity)
	suite.Equal(1, results.Metrics.TotalTrades)
	suite.Empty(results.Diagnostics.Faults)
}

func (suite *BacktestTestSuite) TestCapacityRejectionRecorded() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	scanner := &scriptScanner{byDay: map[string][]types.Candidate{
		"2024-03-04": {
			suite.candidate("AAPL", "2024-03-04", 100),
			suite.candidate("MSFT", "2024-03-04", 200),
		},
	}}

	engine, err := NewEngine(suite.config(1), Deps{
		Scanner:    scanner,
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 10},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Require().Len(results.Diagnostics.Rejections, 1)
	rejection := results.Diagnostics.Rejections[0]
	suite.Equal("MSFT", rejection.Symbol)
	suite.Equal(types.RejectionCapacity, rejection.Reason)

	// Only the admitted position produced a trade, via the terminal close.
	suite.Len(results.Trades, 1)
	suite.Equal("AAPL", results.Trades[0].Symbol)
	suite.Equal(types.ExitReasonEndOfBacktest, results.Trades[0].Reason)
}

func (suite *BacktestTestSuite) TestPartialExitAccounting() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	scanner := &scriptScanner{byDay: map[string][]types.Candidate{
		"2024-03-04": {suite.candidate("AAPL", "2024-03-04", 100)},
	}}

	exitPolicy := &scriptExit{
		partial: true,
		signals: map[string]types.ExitSignal{
			exitKey("AAPL", day("2024-03-06")): types.PartialExit(0.25, 120, types.ExitReasonTarget),
		},
	}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    scanner,
		ExitPolicy: exitPolicy,
		Sizer:      &fixedSizer{shares: 100},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Require().Len(results.Trades, 2)

	partial := results.Trades[0]
	suite.Equal(int64(25), partial.Shares)
	suite.Equal(500.0, partial.PnL)

	remainder := results.Trades[1]
	suite.Equal(int64(75), remainder.Shares)
	suite.Equal(types.ExitReasonEndOfBacktest, remainder.Reason)

	// Conservation: ending cash equals starting capital plus realized PnL.
	totalPnL := 0.0
	for _, trade := range results.Trades {
		totalPnL += trade.PnL
	}

	suite.InDelta(results.StartingCapital+totalPnL, results.EndingCapital, 1e-9)
}

func (suite *BacktestTestSuite) TestFractionalSignalWithoutPartialSupportClosesInFull() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	scanner := &scriptScanner{byDay: map[string][]types.Candidate{
		"2024-03-04": {suite.candidate("AAPL", "2024-03-04", 100)},
	}}

	exitPolicy := &scriptExit{
		partial: false,
		signals: map[string]types.ExitSignal{
			exitKey("AAPL", day("2024-03-06")): types.PartialExit(0.5, 105, types.ExitReasonTarget),
		},
	}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    scanner,
		ExitPolicy: exitPolicy,
		Sizer:      &fixedSizer{shares: 100},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Require().Len(results.Trades, 1)
	suite.Equal(int64(100), results.Trades[0].Shares)
	suite.Equal(500.0, results.Trades[0].PnL)
}

func (suite *BacktestTestSuite) TestZeroTradeRun() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    &scriptScanner{},
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 10},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Empty(results.Trades)
	suite.Equal(100000.0, results.EndingCapital)
	suite.Len(results.EquityCurve, 5)
	suite.Equal(0, results.Metrics.TotalTrades)
	suite.Equal(0.0, results.Metrics.MaxDrawdownPercent)
}

func (suite *BacktestTestSuite) TestDeterministicResults() {
	build := func() *Engine {
		store := &memStore{bars: map[string][]types.Bar{
			"AAPL": flatBars("AAPL", 100, week...),
			"MSFT": flatBars("MSFT", 200, week...),
		}}

		scanner := &scriptScanner{byDay: map[string][]types.Candidate{
			"2024-03-04": {suite.candidate("AAPL", "2024-03-04", 100)},
			"2024-03-05": {suite.candidate("MSFT", "2024-03-05", 200)},
		}}

		exitPolicy := &scriptExit{signals: map[string]types.ExitSignal{
			exitKey("AAPL", day("2024-03-07")): types.FullExit(103, types.ExitReasonTimeLimit),
		}}

		engine, err := NewEngine(suite.config(2), Deps{
			Scanner:    scanner,
			ExitPolicy: exitPolicy,
			Sizer:      &fixedSizer{shares: 50},
			Bars:       store,
			Logger:     logger.NewNopLogger(),
		})
		suite.Require().NoError(err)

		return engine
	}

	first, err := build().Run(context.Background(), nil)
	suite.Require().NoError(err)

	second, err := build().Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Equal(first, second)
}

func (suite *BacktestTestSuite) TestFaultBudgetAbortsRun() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	config := suite.config(2)
	config.MaxConsecutiveFaults = 2

	engine, err := NewEngine(config, Deps{
		Scanner:    &failScanner{},
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 10},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.True(results.Aborted)
	suite.Contains(results.AbortDetail, "fault budget")
	// Two days ran before the budget was spent.
	suite.Len(results.EquityCurve, 2)
	suite.Len(results.Diagnostics.Faults, 2)
	suite.Equal("scan", results.Diagnostics.Faults[0].Stage)
}

func (suite *BacktestTestSuite) TestFaultBudgetDisabledByZero() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    &failScanner{},
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 10},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.False(results.Aborted)
	suite.Len(results.EquityCurve, 5)
	suite.Len(results.Diagnostics.Faults, 5)
}

func (suite *BacktestTestSuite) TestDataGapUsesLastKnownClose() {
	// AAPL has no bar on the 6th; the mark falls back to the close of the 5th.
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, "2024-03-04", "2024-03-05", "2024-03-07", "2024-03-08"),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	scanner := &scriptScanner{byDay: map[string][]types.Candidate{
		"2024-03-04": {suite.candidate("AAPL", "2024-03-04", 100)},
	}}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    scanner,
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 100},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	results, err := engine.Run(context.Background(), nil)
	suite.Require().NoError(err)

	suite.Require().Len(results.Diagnostics.DataGaps, 1)
	suite.Equal("AAPL", results.Diagnostics.DataGaps[0].Symbol)
	suite.Equal(day("2024-03-06"), results.Diagnostics.DataGaps[0].Date)

	// Equity on the gap day is flat at the last known close.
	suite.Len(results.EquityCurve, 5)
	suite.Equal(100000.0, results.EquityCurve[2].Equity)
}

func (suite *BacktestTestSuite) TestContextCancellationReturnsPartialResults() {
	store := &memStore{bars: map[string][]types.Bar{
		"AAPL": flatBars("AAPL", 100, week...),
		"MSFT": flatBars("MSFT", 200, week...),
	}}

	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    &scriptScanner{},
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 10},
		Bars:       store,
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())

	days := 0
	progress := func(d time.Time, current, total int) {
		days++
		if days == 2 {
			cancel()
		}
	}

	results, err := engine.Run(ctx, progress)
	suite.Require().NoError(err)

	suite.True(results.Aborted)
	suite.Contains(results.AbortDetail, "canceled")
	suite.Len(results.EquityCurve, 2)
}

func (suite *BacktestTestSuite) TestNewEngineRequiresDeps() {
	_, err := NewEngine(suite.config(2), Deps{})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BacktestTestSuite) TestRunFailsWithoutData() {
	engine, err := NewEngine(suite.config(2), Deps{
		Scanner:    &scriptScanner{},
		ExitPolicy: &scriptExit{},
		Sizer:      &fixedSizer{shares: 10},
		Bars:       &memStore{bars: map[string][]types.Bar{}},
		Logger:     logger.NewNopLogger(),
	})
	suite.Require().NoError(err)

	_, err = engine.Run(context.Background(), nil)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}
