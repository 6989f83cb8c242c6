// Package engine runs daily-bar backtests. The engine owns the simulation
// clock and the portfolio; entry, exit, and sizing decisions are delegated to
// the pluggable strategy components. One Engine value runs once.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/errors"
)

// warmupDays is the calendar lookback preloaded before the run start so
// indicator-driven policies have history on day one.
const warmupDays = 200

// TradeRecorder receives each realized trade as it closes. The journal
// implements it; a nil recorder disables journaling.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, runID string, trade types.Trade) error
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Scanner    strategy.Scanner
	ExitPolicy strategy.ExitPolicy
	Sizer      strategy.PositionSizer
	Bars       bardata.Store
	Journal    TradeRecorder
	Logger     *logger.Logger
}

// ProgressFunc is called after each simulated day. current counts processed
// days out of total.
type ProgressFunc func(day time.Time, current, total int)

// Engine executes one backtest run.
type Engine struct {
	config *Config
	deps   Deps
	runID  uuid.UUID
}

// NewEngine validates the configuration and dependencies and prepares a run.
// The run ID is derived from the run parameters, so identical configurations
// produce identical IDs.
func NewEngine(config *Config, deps Deps) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if deps.Scanner == nil || deps.ExitPolicy == nil || deps.Sizer == nil || deps.Bars == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration,
			"engine requires a scanner, exit policy, sizer, and bar store")
	}

	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	seed := fmt.Sprintf("backlab|%s|%s|%s|%s",
		config.StrategyName, config.Start, config.End, strings.Join(config.Symbols, ","))

	return &Engine{
		config: config,
		deps:   deps,
		runID:  uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)),
	}, nil
}

// RunID returns the deterministic identifier of this run.
func (e *Engine) RunID() string {
	return e.runID.String()
}

// Run simulates every trading day between the configured start and end dates
// and returns the aggregate results. Component failures are contained per
// symbol and day; the run aborts early only when the consecutive-fault budget
// is spent or the context is canceled, and either way the returned results
// cover the days that did run.
func (e *Engine) Run(ctx context.Context, progress ProgressFunc) (*types.Results, error) {
	start := e.config.StartDate()
	end := e.config.EndDate()

	history, calendar, err := e.preload(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if len(calendar) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound,
			"no bars for any configured symbol between %s and %s", e.config.Start, e.config.End)
	}

	portfolio, err := NewPortfolio(e.config.StartingCapital, e.config.MaxPositions, e.runID, e.deps.Logger)
	if err != nil {
		return nil, err
	}

	diagnostics := types.RunDiagnostics{
		Rejections: []types.CandidateRejection{},
		Faults:     []types.PolicyFault{},
		DataGaps:   []types.DataGap{},
	}

	lastClose := map[string]float64{}
	consecutiveFaults := 0
	aborted := false
	abortDetail := ""
	lastDay := calendar[0]

	e.deps.Logger.Info("starting backtest",
		zap.String("run_id", e.runID.String()),
		zap.String("strategy", e.config.StrategyName),
		zap.Int("trading_days", len(calendar)))

	for i, day := range calendar {
		if ctx.Err() != nil {
			aborted = true
			abortDetail = fmt.Sprintf("run canceled on %s: %v", day.Format(dateLayout), ctx.Err())

			break
		}

		lastDay = day
		dayFaulted := false

		fault := func(symbol, stage string, err error) {
			dayFaulted = true
			diagnostics.Faults = append(diagnostics.Faults, types.PolicyFault{
				Date:   day,
				Symbol: symbol,
				Stage:  stage,
				Detail: err.Error(),
			})
			e.deps.Logger.Warn("policy fault contained",
				zap.Time("date", day),
				zap.String("symbol", symbol),
				zap.String("stage", stage),
				zap.Error(err))
		}

		e.checkExits(ctx, day, history, portfolio, fault)
		e.scanAndAdmit(ctx, day, portfolio, &diagnostics, fault)

		prices := e.markPrices(day, history, portfolio, lastClose, &diagnostics)

		if _, err := portfolio.MarkToMarket(day, prices); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeRunAborted, err,
				"mark-to-market failed on %s", day.Format(dateLayout))
		}

		if dayFaulted {
			consecutiveFaults++
		} else {
			consecutiveFaults = 0
		}

		if budget := e.config.MaxConsecutiveFaults; budget > 0 && consecutiveFaults >= budget {
			aborted = true
			abortDetail = fmt.Sprintf("fault budget spent: %d consecutive faulty days as of %s",
				consecutiveFaults, day.Format(dateLayout))

			break
		}

		if progress != nil {
			progress(day, i+1, len(calendar))
		}
	}

	e.closeOut(ctx, lastDay, portfolio, lastClose)

	results := &types.Results{
		RunID:           e.runID.String(),
		StrategyName:    e.config.StrategyName,
		StartingCapital: e.config.StartingCapital,
		EndingCapital:   portfolio.Cash(),
		Trades:          portfolio.Trades(),
		EquityCurve:     portfolio.EquityCurve(),
		Metrics:         ComputeMetrics(e.config.StartingCapital, portfolio.Trades(), portfolio.EquityCurve()),
		Diagnostics:     diagnostics,
		Aborted:         aborted,
		AbortDetail:     abortDetail,
	}

	e.deps.Logger.Info("backtest finished",
		zap.String("run_id", results.RunID),
		zap.Float64("ending_capital", results.EndingCapital),
		zap.Int("trades", len(results.Trades)),
		zap.Bool("aborted", results.Aborted))

	return results, nil
}

// preload fetches the daily history for every configured symbol, including
// indicator warmup before the start date, and builds the trading calendar as
// the union of bar days inside the run window.
func (e *Engine) preload(ctx context.Context, start, end time.Time) (map[string][]types.Bar, []time.Time, error) {
	history := make(map[string][]types.Bar, len(e.config.Symbols))
	seen := map[time.Time]bool{}

	for _, symbol := range e.config.Symbols {
		bars, err := e.deps.Bars.DailyBars(ctx, symbol, start.AddDate(0, 0, -warmupDays), end)
		if err != nil {
			// A symbol without data never signals; the run continues without it.
			e.deps.Logger.Warn("bars unavailable, excluding symbol from run",
				zap.String("symbol", symbol),
				zap.Error(err))

			continue
		}

		history[symbol] = bars

		for _, bar := range bars {
			day := bar.Day()
			if !day.Before(start) && !day.After(end) {
				seen[day] = true
			}
		}
	}

	calendar := make([]time.Time, 0, len(seen))
	for day := range seen {
		calendar = append(calendar, day)
	}

	sortDays(calendar)

	return history, calendar, nil
}

// checkExits evaluates the exit policy for each open position, oldest first.
// Positions without a bar on the day are held as-is. A fractional signal from
// a policy that does not support partial exits liquidates in full.
func (e *Engine) checkExits(ctx context.Context, day time.Time, history map[string][]types.Bar, portfolio *Portfolio, fault func(symbol, stage string, err error)) {
	for _, position := range portfolio.OpenPositions() {
		recent, ok := barsThrough(history[position.Symbol], day)
		if !ok {
			continue
		}

		bar := recent[len(recent)-1]
		if !bar.Day().Equal(day) {
			// No bar for the day, nothing to fill against.
			continue
		}

		signal, err := e.deps.ExitPolicy.CheckExit(position, bar.Close, day, recent)
		if err != nil {
			fault(position.Symbol, "exit", err)

			continue
		}

		if !signal.ShouldExit {
			continue
		}

		if signal.Fraction < 1 && !e.deps.ExitPolicy.SupportsPartialExits() {
			signal = types.FullExit(signal.Price, signal.Reason)
		}

		trade, err := portfolio.ApplyExit(position, signal, day)
		if err != nil {
			fault(position.Symbol, "exit", err)

			continue
		}

		if trade.IsSome() {
			e.recordTrade(ctx, trade.Unwrap(), fault)
		}
	}
}

// scanAndAdmit runs the scanner and opens positions for admissible candidates
// in score order. Declined candidates are recorded as rejections; component
// failures are recorded as faults.
func (e *Engine) scanAndAdmit(ctx context.Context, day time.Time, portfolio *Portfolio, diagnostics *types.RunDiagnostics, fault func(symbol, stage string, err error)) {
	candidates, err := e.deps.Scanner.Scan(ctx, day)
	if err != nil {
		fault("", "scan", err)

		return
	}

	types.SortCandidates(candidates)

	reject := func(candidate types.Candidate, reason types.RejectionReason, detail string) {
		diagnostics.Rejections = append(diagnostics.Rejections, types.CandidateRejection{
			Date:   day,
			Symbol: candidate.Symbol,
			Reason: reason,
			Detail: detail,
		})
	}

	for _, candidate := range candidates {
		if err := candidate.Validate(); err != nil {
			fault(candidate.Symbol, "scan", err)

			continue
		}

		if _, exists := portfolio.Position(candidate.Symbol); exists {
			continue
		}

		account := portfolio.AccountState()

		if account.OpenPositions >= account.MaxPositions {
			reject(candidate, types.RejectionCapacity,
				fmt.Sprintf("%d of %d positions open", account.OpenPositions, account.MaxPositions))

			continue
		}

		size, err := e.deps.Sizer.Size(account, candidate)
		if err != nil {
			fault(candidate.Symbol, "size", err)

			continue
		}

		if size.Skip() {
			reject(candidate, types.RejectionSizerSkip, "sizer returned zero shares")

			continue
		}

		stop := e.deps.ExitPolicy.InitialStop(candidate.EntryPrice)
		if candidate.StopPrice > stop {
			stop = candidate.StopPrice
		}

		if _, err := portfolio.OpenPosition(candidate, size, day, stop); err != nil {
			switch errors.GetCode(err) {
			case errors.ErrCodeMaxPositionsReached:
				reject(candidate, types.RejectionCapacity, err.Error())
			case errors.ErrCodeInsufficientCash:
				reject(candidate, types.RejectionInsufficientCash, err.Error())
			case errors.ErrCodeSizingRejected:
				reject(candidate, types.RejectionSizerSkip, err.Error())
			default:
				fault(candidate.Symbol, "admit", err)
			}
		}
	}
}

// markPrices assembles the end-of-day price per open symbol and refreshes the
// last known closes. A symbol without a bar on the day is marked at its last
// known close and recorded as a data gap.
func (e *Engine) markPrices(day time.Time, history map[string][]types.Bar, portfolio *Portfolio, lastClose map[string]float64, diagnostics *types.RunDiagnostics) map[string]float64 {
	for symbol, bars := range history {
		if recent, ok := barsThrough(bars, day); ok {
			lastClose[symbol] = recent[len(recent)-1].Close
		}
	}

	prices := map[string]float64{}

	for _, position := range portfolio.OpenPositions() {
		if recent, ok := barsThrough(history[position.Symbol], day); ok && recent[len(recent)-1].Day().Equal(day) {
			prices[position.Symbol] = recent[len(recent)-1].Close

			continue
		}

		prices[position.Symbol] = lastClose[position.Symbol]
		diagnostics.DataGaps = append(diagnostics.DataGaps, types.DataGap{
			Date:   day,
			Symbol: position.Symbol,
		})
	}

	return prices
}

// closeOut force-liquidates every remaining position at its last known close.
// End-of-run exits are regular trades with their own reason, so conservation
// holds: ending cash equals starting capital plus realized PnL.
func (e *Engine) closeOut(ctx context.Context, day time.Time, portfolio *Portfolio, lastClose map[string]float64) {
	for _, position := range portfolio.OpenPositions() {
		price, ok := lastClose[position.Symbol]
		if !ok || price <= 0 {
			price = position.EntryPrice
		}

		trade, err := portfolio.ApplyExit(position, types.FullExit(price, types.ExitReasonEndOfBacktest), day)
		if err != nil {
			e.deps.Logger.Error("failed to close position at end of run",
				zap.String("symbol", position.Symbol),
				zap.Error(err))

			continue
		}

		if trade.IsSome() {
			e.recordTrade(ctx, trade.Unwrap(), func(symbol, stage string, err error) {
				e.deps.Logger.Warn("journal write failed",
					zap.String("symbol", symbol),
					zap.Error(err))
			})
		}
	}
}

// recordTrade forwards a realized trade to the journal, if one is attached.
// Journal failures never stop the simulation.
func (e *Engine) recordTrade(ctx context.Context, trade types.Trade, fault func(symbol, stage string, err error)) {
	if e.deps.Journal == nil {
		return
	}

	if err := e.deps.Journal.RecordTrade(ctx, e.runID.String(), trade); err != nil {
		fault(trade.Symbol, "journal", errors.Wrap(errors.ErrCodeJournalFailed, "failed to record trade", err))
	}
}

// barsThrough returns the prefix of bars dated at or before day. The last bar
// of the prefix need not fall on day itself; ok is false only when no such
// bar exists.
func barsThrough(bars []types.Bar, day time.Time) ([]types.Bar, bool) {
	index := sort.Search(len(bars), func(i int) bool {
		return bars[i].Day().After(day)
	})

	if index == 0 {
		return nil, false
	}

	return bars[:index], true
}

func sortDays(days []time.Time) {
	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})
}
