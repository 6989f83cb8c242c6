package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/errors"
)

// binancePageSize is the kline page limit enforced by the Binance API.
const binancePageSize = 500

// BinanceProvider fetches historical klines from the Binance REST API.
// Public kline endpoints need no credentials.
type BinanceProvider struct {
	client *binance.Client
}

var _ Provider = (*BinanceProvider)(nil)

// NewBinanceProvider creates a Binance-backed provider.
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{
		client: binance.NewClient("", ""),
	}
}

// Name implements Provider.
func (p *BinanceProvider) Name() string {
	return string(TypeBinance)
}

// DailyBars implements bardata.Store.
func (p *BinanceProvider) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	return p.fetchKlines(ctx, symbol, start, end.Add(24*time.Hour-time.Millisecond), "1d")
}

// IntradayBars implements bardata.Store.
func (p *BinanceProvider) IntradayBars(ctx context.Context, symbol string, day time.Time, granularity types.Granularity) ([]types.Bar, error) {
	interval, err := binanceInterval(granularity)
	if err != nil {
		return nil, err
	}

	sessionStart, sessionEnd := bardata.SessionBounds(day)

	return p.fetchKlines(ctx, symbol, sessionStart, sessionEnd.Add(-time.Millisecond), interval)
}

func (p *BinanceProvider) fetchKlines(ctx context.Context, symbol string, start, end time.Time, interval string) ([]types.Bar, error) {
	var bars []types.Bar

	// Page through the kline endpoint; Binance caps each response.
	currentStart := start.UnixMilli()
	endMillis := end.UnixMilli()

	for {
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeProviderFetch, err, "binance klines for %s failed", symbol)
		}

		for _, kline := range klines {
			bar, err := klineToBar(symbol, kline)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		if len(klines) < binancePageSize {
			break
		}

		// Resume after the close time of the last kline to avoid duplicates.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	if err := bardata.ValidateSeries(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

func klineToBar(symbol string, kline *binance.Kline) (types.Bar, error) {
	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeProviderFetch, "failed to parse kline open", err)
	}

	high, err := strconv.ParseFloat(kline.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeProviderFetch, "failed to parse kline high", err)
	}

	low, err := strconv.ParseFloat(kline.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeProviderFetch, "failed to parse kline low", err)
	}

	closePrice, err := strconv.ParseFloat(kline.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeProviderFetch, "failed to parse kline close", err)
	}

	volume, err := strconv.ParseFloat(kline.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeProviderFetch, "failed to parse kline volume", err)
	}

	return types.Bar{
		Symbol: symbol,
		Time:   time.UnixMilli(kline.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func binanceInterval(granularity types.Granularity) (string, error) {
	switch granularity {
	case types.Granularity1m, types.Granularity5m, types.Granularity15m,
		types.Granularity30m, types.Granularity1h, types.Granularity1d:
		return string(granularity), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity: %s", granularity)
	}
}
