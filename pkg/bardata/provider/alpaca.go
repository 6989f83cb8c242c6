package provider

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/errors"
)

// AlpacaProvider fetches bars from the Alpaca market data API.
type AlpacaProvider struct {
	client *marketdata.Client
}

var _ Provider = (*AlpacaProvider)(nil)

// NewAlpacaProvider creates an Alpaca-backed provider.
func NewAlpacaProvider(apiKey, apiSecret string) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

// Name implements Provider.
func (p *AlpacaProvider) Name() string {
	return string(TypeAlpaca)
}

// DailyBars implements bardata.Store.
func (p *AlpacaProvider) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	return p.getBars(ctx, symbol, start, end.Add(24*time.Hour-time.Nanosecond), marketdata.OneDay)
}

// IntradayBars implements bardata.Store.
func (p *AlpacaProvider) IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error) {
	timeFrame, err := alpacaTimeFrame(granularity)
	if err != nil {
		return nil, err
	}

	sessionStart, sessionEnd := bardata.SessionBounds(day)

	return p.getBars(ctx, symbol, sessionStart, sessionEnd.Add(-time.Nanosecond), timeFrame)
}

func (p *AlpacaProvider) getBars(ctx context.Context, symbol string, start, end time.Time, timeFrame marketdata.TimeFrame) ([]types.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	alpacaBars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: timeFrame,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderFetch, err, "alpaca bars for %s failed", symbol)
	}

	bars := make([]types.Bar, 0, len(alpacaBars))
	for _, bar := range alpacaBars {
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   bar.Timestamp.UTC(),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: float64(bar.Volume),
		})
	}

	if err := bardata.ValidateSeries(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

func alpacaTimeFrame(granularity types.Granularity) (marketdata.TimeFrame, error) {
	switch granularity {
	case types.Granularity1m:
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case types.Granularity5m:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case types.Granularity15m:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case types.Granularity30m:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case types.Granularity1h:
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case types.Granularity1d:
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity: %s", granularity)
	}
}
