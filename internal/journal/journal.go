// Package journal persists realized trades to a local DuckDB database as a
// run executes, so a crash or abort still leaves an inspectable record of
// everything that closed.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// Journal is a DuckDB-backed trade log. Writes are one transaction per trade;
// a backtest closes few enough trades that durability wins over batching.
type Journal struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewJournal opens (or creates) the journal database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral journal in tests.
func NewJournal(path string, log *logger.Logger) (*Journal, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalFailed, "failed to open journal database", err)
	}

	journal := &Journal{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := journal.initialize(); err != nil {
		return nil, err
	}

	return journal, nil
}

func (j *Journal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			position_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			entry_date TIMESTAMP NOT NULL,
			entry_price DOUBLE NOT NULL,
			exit_date TIMESTAMP NOT NULL,
			exit_price DOUBLE NOT NULL,
			shares BIGINT NOT NULL,
			pnl DOUBLE NOT NULL,
			reason TEXT NOT NULL,
			holding_days INTEGER NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordTrade appends one realized trade under the given run.
func (j *Journal) RecordTrade(ctx context.Context, runID string, trade types.Trade) error {
	tx, err := j.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to begin journal transaction", err)
	}

	insert := j.sq.
		Insert("trades").
		Columns("id", "run_id", "position_id", "symbol", "entry_date", "entry_price",
			"exit_date", "exit_price", "shares", "pnl", "reason", "holding_days").
		Values(trade.ID, runID, trade.PositionID, trade.Symbol, trade.EntryDate, trade.EntryPrice,
			trade.ExitDate, trade.ExitPrice, trade.Shares, trade.PnL, string(trade.Reason), trade.HoldingDays).
		RunWith(tx)

	if _, err := insert.ExecContext(ctx); err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeJournalFailed, err, "failed to record trade %s", trade.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to commit trade", err)
	}

	j.logger.Debug("Trade journaled",
		zap.String("run_id", runID),
		zap.String("symbol", trade.Symbol),
		zap.Float64("pnl", trade.PnL),
	)

	return nil
}

// Trades returns every journaled trade for a run, ordered by exit date then id.
func (j *Journal) Trades(ctx context.Context, runID string) ([]types.Trade, error) {
	query := j.sq.
		Select("id", "position_id", "symbol", "entry_date", "entry_price",
			"exit_date", "exit_price", "shares", "pnl", "reason", "holding_days").
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("exit_date ASC", "id ASC").
		RunWith(j.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeJournalFailed, err, "failed to query trades for run %s", runID)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var trade types.Trade

		var reason string

		err := rows.Scan(&trade.ID, &trade.PositionID, &trade.Symbol, &trade.EntryDate, &trade.EntryPrice,
			&trade.ExitDate, &trade.ExitPrice, &trade.Shares, &trade.PnL, &reason, &trade.HoldingDays)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalFailed, "failed to scan trade", err)
		}

		trade.Reason = types.ExitReason(reason)
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalFailed, "error iterating trades", err)
	}

	return trades, nil
}

// TradeByID looks up a single journaled trade. Returns None when absent.
func (j *Journal) TradeByID(ctx context.Context, id string) (optional.Option[types.Trade], error) {
	query := j.sq.
		Select("id", "position_id", "symbol", "entry_date", "entry_price",
			"exit_date", "exit_price", "shares", "pnl", "reason", "holding_days").
		From("trades").
		Where(squirrel.Eq{"id": id}).
		RunWith(j.db)

	var trade types.Trade

	var reason string

	err := query.QueryRowContext(ctx).Scan(&trade.ID, &trade.PositionID, &trade.Symbol, &trade.EntryDate,
		&trade.EntryPrice, &trade.ExitDate, &trade.ExitPrice, &trade.Shares, &trade.PnL, &reason, &trade.HoldingDays)
	if err == sql.ErrNoRows {
		return optional.None[types.Trade](), nil
	}

	if err != nil {
		return optional.None[types.Trade](), errors.Wrapf(errors.ErrCodeJournalFailed, err, "failed to look up trade %s", id)
	}

	trade.Reason = types.ExitReason(reason)

	return optional.Some(trade), nil
}

// Export writes the full trades table to a parquet file in dir.
func (j *Journal) Export(dir string) (string, error) {
	path := filepath.Join(dir, "trades.parquet")

	_, err := j.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, path))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeJournalFailed, "failed to export trades to parquet", err)
	}

	return path, nil
}

// Cleanup removes every journaled trade for a run.
func (j *Journal) Cleanup(ctx context.Context, runID string) error {
	query := j.sq.
		Delete("trades").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(j.db)

	if _, err := query.ExecContext(ctx); err != nil {
		return errors.Wrapf(errors.ErrCodeJournalFailed, err, "failed to clean up run %s", runID)
	}

	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
