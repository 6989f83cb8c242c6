package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/errors"
)

// PolygonProvider fetches aggregates from the Polygon REST API.
type PolygonProvider struct {
	client *polygon.Client
}

var _ Provider = (*PolygonProvider)(nil)

// NewPolygonProvider creates a Polygon-backed provider.
func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return &PolygonProvider{
		client: polygon.New(apiKey),
	}, nil
}

// Name implements Provider.
func (p *PolygonProvider) Name() string {
	return string(TypePolygon)
}

// DailyBars implements bardata.Store.
func (p *PolygonProvider) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	return p.listAggs(ctx, symbol, start, end.Add(24*time.Hour-time.Nanosecond), 1, models.Day)
}

// IntradayBars implements bardata.Store.
func (p *PolygonProvider) IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error) {
	multiplier, timespan, err := polygonTimespan(granularity)
	if err != nil {
		return nil, err
	}

	sessionStart, sessionEnd := bardata.SessionBounds(day)

	return p.listAggs(ctx, symbol, sessionStart, sessionEnd.Add(-time.Nanosecond), multiplier, timespan)
}

func (p *PolygonProvider) listAggs(ctx context.Context, symbol string, start, end time.Time, multiplier int, timespan models.Timespan) ([]types.Bar, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp).UTC(),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderFetch, iter.Err(), "polygon aggregates for %s failed", symbol)
	}

	if err := bardata.ValidateSeries(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

func polygonTimespan(granularity types.Granularity) (int, models.Timespan, error) {
	switch granularity {
	case types.Granularity1m:
		return 1, models.Minute, nil
	case types.Granularity5m:
		return 5, models.Minute, nil
	case types.Granularity15m:
		return 15, models.Minute, nil
	case types.Granularity30m:
		return 30, models.Minute, nil
	case types.Granularity1h:
		return 1, models.Hour, nil
	case types.Granularity1d:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity: %s", granularity)
	}
}
