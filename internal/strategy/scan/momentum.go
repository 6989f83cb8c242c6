// Package scan provides the built-in entry scanners.
package scan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/indicator"
	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/errors"
)

// Momentum scans a fixed universe for symbols whose trailing return over the
// lookback window exceeds a threshold. The score is the lookback return, so
// stronger movers rank first. Stops are placed a multiple of ATR below the
// entry price.
type Momentum struct {
	symbols         []string
	lookbackDays    int
	minReturn       float64
	atrPeriod       int
	atrStopMultiple float64
	bars            bardata.Store
	logger          *zap.Logger
}

var _ strategy.Scanner = (*Momentum)(nil)

// NewMomentum creates a momentum scanner over the given symbol universe.
func NewMomentum(env strategy.Env, symbols []string, lookbackDays int, minReturn float64, atrPeriod int, atrStopMultiple float64) (*Momentum, error) {
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "momentum scanner needs at least one symbol")
	}

	if lookbackDays < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "lookback days %d must be at least 1", lookbackDays)
	}

	if atrPeriod < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "atr period %d must be at least 1", atrPeriod)
	}

	if atrStopMultiple <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "atr stop multiple %.2f must be positive", atrStopMultiple)
	}

	return &Momentum{
		symbols:         symbols,
		lookbackDays:    lookbackDays,
		minReturn:       minReturn,
		atrPeriod:       atrPeriod,
		atrStopMultiple: atrStopMultiple,
		bars:            env.Bars,
		logger:          env.Logger.Logger,
	}, nil
}

// StrategyName implements strategy.Scanner.
func (m *Momentum) StrategyName() string {
	return "momentum"
}

// Scan implements strategy.Scanner. Symbols with too little history are
// skipped silently; warmup is expected at the start of a backtest.
func (m *Momentum) Scan(ctx context.Context, date time.Time) ([]types.Candidate, error) {
	// Calendar days outnumber trading days, so fetch with headroom.
	window := m.lookbackDays + m.atrPeriod + 1
	start := date.AddDate(0, 0, -window*2)

	candidates := make([]types.Candidate, 0, len(m.symbols))

	for _, symbol := range m.symbols {
		bars, err := m.bars.DailyBars(ctx, symbol, start, date)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeScannerFault, err, "momentum scan of %s failed", symbol)
		}

		if len(bars) < m.lookbackDays+1 {
			continue
		}

		last := bars[len(bars)-1]
		if !last.Day().Equal(types.Day(date)) {
			// No bar for the scan date itself, nothing to enter on.
			continue
		}

		base := bars[len(bars)-1-m.lookbackDays].Close
		if base <= 0 {
			continue
		}

		ret := last.Close/base - 1
		if ret < m.minReturn {
			continue
		}

		stop := 0.0

		atr, err := indicator.ATR(bars, m.atrPeriod)
		if err == nil {
			stop = last.Close - m.atrStopMultiple*atr
		} else if !errors.HasCode(err, errors.ErrCodeInsufficientData) {
			return nil, errors.Wrapf(errors.ErrCodeScannerFault, err, "momentum atr for %s failed", symbol)
		}

		if stop < 0 {
			stop = 0
		}

		candidates = append(candidates, types.Candidate{
			Symbol:     symbol,
			ScanDate:   types.Day(date),
			Score:      ret,
			EntryPrice: last.Close,
			StopPrice:  stop,
			Metadata: map[string]string{
				"lookback_return": fmt.Sprintf("%.4f", ret),
			},
		})
	}

	types.SortCandidates(candidates)

	if len(candidates) > 0 {
		m.logger.Debug("momentum scan produced candidates",
			zap.Time("date", date),
			zap.Int("count", len(candidates)))
	}

	return candidates, nil
}
