// Package bardata supplies historical price bars to the backtest engine.
// A Store is read-only and deterministic for a given key; callers rely on
// bars arriving in ascending timestamp order with no duplicates.
package bardata

import (
	"context"
	"time"

	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

// Store is the bar retrieval interface consumed by the engine and scanners.
type Store interface {
	// DailyBars returns daily bars for symbol between start and end inclusive,
	// ascending by timestamp.
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)
	// IntradayBars returns bars for one trading session at the given
	// granularity, ascending by timestamp.
	IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error)
}

// ValidateSeries checks the Store ordering contract: ascending timestamps with
// no duplicates.
func ValidateSeries(bars []types.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return errors.Newf(errors.ErrCodeDataOutOfOrder,
				"bar %d (%s) not after bar %d (%s)",
				i, bars[i].Time.Format(time.RFC3339), i-1, bars[i-1].Time.Format(time.RFC3339))
		}
	}

	return nil
}

// SessionBounds returns the UTC start (inclusive) and end (exclusive) of the
// trading day containing t.
func SessionBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	return start, start.Add(24 * time.Hour)
}
