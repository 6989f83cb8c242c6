package types

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EquityPoint is one end-of-day sample of total portfolio value.
type EquityPoint struct {
	Date   time.Time `yaml:"date" json:"date"`
	Equity float64   `yaml:"equity" json:"equity"`
}

// Metrics are the aggregate statistics derived from the realized trade list
// and the equity curve. All fields tolerate zero-trade runs.
type Metrics struct {
	TotalTrades        int     `yaml:"total_trades" json:"total_trades"`
	WinningTrades      int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades       int     `yaml:"losing_trades" json:"losing_trades"`
	TotalReturnPercent float64 `yaml:"total_return_percent" json:"total_return_percent"`
	WinRate            float64 `yaml:"win_rate" json:"win_rate"`
	// ProfitFactor is gross winning PnL over gross losing PnL magnitude.
	// It is +Inf when the run has winners but no losers.
	ProfitFactor       float64 `yaml:"profit_factor" json:"profit_factor"`
	MaxDrawdownPercent float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent"`
	Expectancy         float64 `yaml:"expectancy" json:"expectancy"`
	AvgHoldDays        float64 `yaml:"avg_hold_days" json:"avg_hold_days"`
	GrossProfit        float64 `yaml:"gross_profit" json:"gross_profit"`
	GrossLoss          float64 `yaml:"gross_loss" json:"gross_loss"`
}

// RejectionReason classifies why a candidate was not opened.
type RejectionReason string

const (
	RejectionCapacity         RejectionReason = "capacity"
	RejectionInsufficientCash RejectionReason = "insufficient_cash"
	RejectionSizerSkip        RejectionReason = "sizer_skip"
)

// CandidateRejection records a candidate the engine declined. Rejections are
// normal control flow, kept for run diagnostics rather than raised as errors.
type CandidateRejection struct {
	Date   time.Time       `yaml:"date" json:"date"`
	Symbol string          `yaml:"symbol" json:"symbol"`
	Reason RejectionReason `yaml:"reason" json:"reason"`
	Detail string          `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// PolicyFault records a scanner/exit/sizer failure that was contained at the
// engine boundary for one symbol and day.
type PolicyFault struct {
	Date   time.Time `yaml:"date" json:"date"`
	Symbol string    `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	Stage  string    `yaml:"stage" json:"stage"`
	Detail string    `yaml:"detail" json:"detail"`
}

// DataGap records a day on which a symbol had no bar and the last known close
// was used for marking.
type DataGap struct {
	Date   time.Time `yaml:"date" json:"date"`
	Symbol string    `yaml:"symbol" json:"symbol"`
}

// RunDiagnostics collects the non-fatal events of one backtest run.
type RunDiagnostics struct {
	Rejections []CandidateRejection `yaml:"rejections" json:"rejections"`
	Faults     []PolicyFault        `yaml:"faults" json:"faults"`
	DataGaps   []DataGap            `yaml:"data_gaps" json:"data_gaps"`
}

// Results is the aggregate output of one engine run. It is produced once and
// immutable thereafter.
type Results struct {
	RunID           string         `yaml:"run_id" json:"run_id"`
	StrategyName    string         `yaml:"strategy_name" json:"strategy_name"`
	StartingCapital float64        `yaml:"starting_capital" json:"starting_capital"`
	EndingCapital   float64        `yaml:"ending_capital" json:"ending_capital"`
	Trades          []Trade        `yaml:"trades" json:"trades"`
	EquityCurve     []EquityPoint  `yaml:"equity_curve" json:"equity_curve"`
	Metrics         Metrics        `yaml:"metrics" json:"metrics"`
	Diagnostics     RunDiagnostics `yaml:"diagnostics" json:"diagnostics"`
	// Aborted is true when the run stopped before the configured end date.
	Aborted     bool   `yaml:"aborted" json:"aborted"`
	AbortDetail string `yaml:"abort_detail,omitempty" json:"abort_detail,omitempty"`
}

// Summary renders the human-readable report used by the CLI surface.
func (r *Results) Summary() string {
	profitFactor := fmt.Sprintf("%.2f", r.Metrics.ProfitFactor)
	if math.IsInf(r.Metrics.ProfitFactor, 1) {
		profitFactor = "n/a"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Strategy:          %s\n", r.StrategyName)
	fmt.Fprintf(&sb, "Starting capital:  %.2f\n", r.StartingCapital)
	fmt.Fprintf(&sb, "Ending capital:    %.2f\n", r.EndingCapital)
	fmt.Fprintf(&sb, "Total return:      %.2f%%\n", r.Metrics.TotalReturnPercent)
	fmt.Fprintf(&sb, "Trades:            %d (%d won / %d lost)\n",
		r.Metrics.TotalTrades, r.Metrics.WinningTrades, r.Metrics.LosingTrades)
	fmt.Fprintf(&sb, "Win rate:          %.2f%%\n", r.Metrics.WinRate)
	fmt.Fprintf(&sb, "Profit factor:     %s\n", profitFactor)
	fmt.Fprintf(&sb, "Max drawdown:      %.2f%%\n", r.Metrics.MaxDrawdownPercent)
	fmt.Fprintf(&sb, "Expectancy:        %.2f\n", r.Metrics.Expectancy)
	fmt.Fprintf(&sb, "Avg holding days:  %.1f\n", r.Metrics.AvgHoldDays)

	if r.Aborted {
		fmt.Fprintf(&sb, "Aborted:           %s\n", r.AbortDetail)
	}

	return sb.String()
}

// MarshalTrades serializes the ordered trade list for machine consumption.
// The output is stable between identical runs and suitable for diffing.
func (r *Results) MarshalTrades() ([]byte, error) {
	data, err := yaml.Marshal(r.Trades)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trades to YAML: %w", err)
	}

	return data, nil
}

// WriteResults writes the full results to a YAML file.
func WriteResults(path string, results *Results) error {
	data, err := yaml.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results to file: %w", err)
	}

	return nil
}
