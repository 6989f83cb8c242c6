package bardata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// CachedStore is a caching decorator over a Store. Fetched ranges are
// persisted into a DuckDB cache database keyed by (symbol, start, end,
// granularity); a later identical request is served from disk without touching
// the underlying store. Corrupted cache rows are evicted and treated as a
// miss, never as a fatal error, so a damaged cache degrades to live fetches.
type CachedStore struct {
	underlying Store
	db         *sql.DB
	logger     *logger.Logger
	sq         squirrel.StatementBuilderType
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore opens (or creates) the cache database at path and wraps the
// given store.
func NewCachedStore(underlying Store, path string, log *logger.Logger) (*CachedStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open cache database", err)
	}

	cache := &CachedStore{
		underlying: underlying,
		db:         db,
		logger:     log,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := cache.initialize(); err != nil {
		return nil, err
	}

	return cache, nil
}

func (c *CachedStore) initialize() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			granularity TEXT NOT NULL,
			range_start TIMESTAMP NOT NULL,
			range_end TIMESTAMP NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS cache_bars (
			key TEXT NOT NULL,
			symbol TEXT NOT NULL,
			time TIMESTAMP NOT NULL,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create cache tables", err)
	}

	return nil
}

// DailyBars implements Store.
func (c *CachedStore) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	key := cacheKey(symbol, start, end, types.Granularity1d)

	if bars, ok := c.lookup(key); ok {
		return bars, nil
	}

	bars, err := c.underlying.DailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	c.persist(key, symbol, start, end, types.Granularity1d, bars)

	return bars, nil
}

// IntradayBars implements Store.
func (c *CachedStore) IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error) {
	sessionStart, sessionEnd := SessionBounds(day)
	key := cacheKey(symbol, sessionStart, sessionEnd, granularity)

	if bars, ok := c.lookup(key); ok {
		return bars, nil
	}

	bars, err := c.underlying.IntradayBars(ctx, symbol, day, granularity)
	if err != nil {
		return nil, err
	}

	c.persist(key, symbol, sessionStart, sessionEnd, granularity, bars)

	return bars, nil
}

// lookup returns the cached series for key. Any read or validation failure
// evicts the entry and reports a miss.
func (c *CachedStore) lookup(key string) ([]types.Bar, bool) {
	var exists int

	entryQuery := c.sq.
		Select("COUNT(*)").
		From("cache_entries").
		Where(squirrel.Eq{"key": key}).
		RunWith(c.db)

	if err := entryQuery.QueryRow().Scan(&exists); err != nil || exists == 0 {
		return nil, false
	}

	barsQuery := c.sq.
		Select("symbol", "time", "open", "high", "low", "close", "volume").
		From("cache_bars").
		Where(squirrel.Eq{"key": key}).
		OrderBy("time ASC").
		RunWith(c.db)

	rows, err := barsQuery.Query()
	if err != nil {
		c.evict(key, err)

		return nil, false
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		if err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			c.evict(key, err)

			return nil, false
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		c.evict(key, err)

		return nil, false
	}

	if err := ValidateSeries(bars); err != nil {
		c.evict(key, err)

		return nil, false
	}

	return bars, true
}

func (c *CachedStore) persist(key, symbol string, start, end time.Time, granularity types.Granularity, bars []types.Bar) {
	tx, err := c.db.Begin()
	if err != nil {
		c.logger.Warn("Failed to begin cache transaction", zap.Error(err))

		return
	}

	entryInsert := c.sq.
		Insert("cache_entries").
		Columns("key", "symbol", "granularity", "range_start", "range_end", "fetched_at").
		Values(key, symbol, string(granularity), start, end, time.Now().UTC()).
		RunWith(tx)

	if _, err := entryInsert.Exec(); err != nil {
		tx.Rollback()
		c.logger.Warn("Failed to persist cache entry", zap.String("key", key), zap.Error(err))

		return
	}

	if len(bars) > 0 {
		barInsert := c.sq.
			Insert("cache_bars").
			Columns("key", "symbol", "time", "open", "high", "low", "close", "volume")

		for _, bar := range bars {
			barInsert = barInsert.Values(key, bar.Symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		}

		if _, err := barInsert.RunWith(tx).Exec(); err != nil {
			tx.Rollback()
			c.logger.Warn("Failed to persist cache bars", zap.String("key", key), zap.Error(err))

			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.logger.Warn("Failed to commit cache write", zap.String("key", key), zap.Error(err))
	}
}

// evict drops a corrupted cache entry so the next request refetches it.
func (c *CachedStore) evict(key string, cause error) {
	c.logger.Warn("Evicting corrupted cache entry",
		zap.String("key", key),
		zap.Error(cause),
	)

	if _, err := c.sq.Delete("cache_bars").Where(squirrel.Eq{"key": key}).RunWith(c.db).Exec(); err != nil {
		c.logger.Warn("Failed to evict cache bars", zap.String("key", key), zap.Error(err))
	}

	if _, err := c.sq.Delete("cache_entries").Where(squirrel.Eq{"key": key}).RunWith(c.db).Exec(); err != nil {
		c.logger.Warn("Failed to evict cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the cache database. The underlying store is not closed.
func (c *CachedStore) Close() error {
	return c.db.Close()
}

func cacheKey(symbol string, start, end time.Time, granularity types.Granularity) string {
	return fmt.Sprintf("%s|%s|%d|%d", symbol, granularity, start.Unix(), end.Unix())
}
