package bardata

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// DuckDBStore serves bars from a local DuckDB database. The same database is
// the target of the download CLI, so backtests run entirely offline once the
// data has been fetched.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

var _ Store = (*DuckDBStore)(nil)

// NewDuckDBStore opens (or creates) the bar database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store in tests.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open bar database", err)
	}

	store := &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *DuckDBStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			granularity TEXT NOT NULL,
			time TIMESTAMP NOT NULL,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create bars table", err)
	}

	return nil
}

// WriteBars inserts a bar series at the given granularity, replacing any bars
// already stored for the same symbol/granularity/timestamp.
func (s *DuckDBStore) WriteBars(bars []types.Bar, granularity types.Granularity) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	deleteQuery := s.sq.
		Delete("bars").
		Where(squirrel.Eq{"symbol": bars[0].Symbol, "granularity": string(granularity)}).
		Where(squirrel.GtOrEq{"time": bars[0].Time}).
		Where(squirrel.LtOrEq{"time": bars[len(bars)-1].Time}).
		RunWith(tx)

	if _, err := deleteQuery.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to clear overlapping bars", err)
	}

	insert := s.sq.
		Insert("bars").
		Columns("symbol", "granularity", "time", "open", "high", "low", "close", "volume")

	for _, bar := range bars {
		insert = insert.Values(bar.Symbol, string(granularity), bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	if _, err := insert.RunWith(tx).Exec(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert bars", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit bars", err)
	}

	s.logger.Debug("Bars written",
		zap.String("symbol", bars[0].Symbol),
		zap.String("granularity", string(granularity)),
		zap.Int("count", len(bars)),
	)

	return nil
}

// DailyBars implements Store.
func (s *DuckDBStore) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	return s.queryBars(ctx, symbol, types.Granularity1d, start, end.Add(24*time.Hour-time.Nanosecond))
}

// IntradayBars implements Store.
func (s *DuckDBStore) IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error) {
	sessionStart, sessionEnd := SessionBounds(day)

	return s.queryBars(ctx, symbol, granularity, sessionStart, sessionEnd.Add(-time.Nanosecond))
}

func (s *DuckDBStore) queryBars(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) ([]types.Bar, error) {
	query := s.sq.
		Select("symbol", "time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "granularity": string(granularity)}).
		Where(squirrel.GtOrEq{"time": start}).
		Where(squirrel.LtOrEq{"time": end}).
		OrderBy("time ASC").
		RunWith(s.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query bars for %s", symbol)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err)
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

// Count returns the number of stored bars for a symbol and granularity.
func (s *DuckDBStore) Count(symbol string, granularity types.Granularity) (int, error) {
	query := s.sq.
		Select("COUNT(*)").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "granularity": string(granularity)}).
		RunWith(s.db)

	var count int
	if err := query.QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// ExportParquet writes the full bars table to a parquet file in dir.
func (s *DuckDBStore) ExportParquet(dir string) (string, error) {
	path := filepath.Join(dir, "bars.parquet")

	_, err := s.db.Exec(fmt.Sprintf(`COPY bars TO '%s' (FORMAT PARQUET)`, path))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeQueryFailed, "failed to export bars to parquet", err)
	}

	return path, nil
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
