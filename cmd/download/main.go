package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/bardata/provider"
)

// downloadAction fetches historical bars from the configured provider and
// writes them into the local bar database consumed by the backtest CLI.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	symbols := cmd.StringSlice("symbol")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	granularity := types.Granularity(cmd.String("granularity"))
	dbPath := cmd.String("db")

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	source, err := provider.New(provider.Config{
		Type:            provider.Type(cmd.String("provider")),
		PolygonAPIKey:   os.Getenv("POLYGON_API_KEY"),
		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret: os.Getenv("ALPACA_API_SECRET"),
	})
	if err != nil {
		return err
	}

	store, err := bardata.NewDuckDBStore(dbPath, appLog)
	if err != nil {
		return err
	}
	defer store.Close()

	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading from %s", source.Name())),
		progressbar.OptionShowCount())

	for _, symbol := range symbols {
		bars, err := fetch(ctx, source, symbol, start, end, granularity)
		if err != nil {
			return fmt.Errorf("download of %s failed: %w", symbol, err)
		}

		if err := store.WriteBars(bars, granularity); err != nil {
			return err
		}

		appLog.Info("symbol downloaded",
			zap.String("symbol", symbol),
			zap.String("granularity", string(granularity)),
			zap.Int("bars", len(bars)))

		bar.Add(1)
	}

	bar.Finish()
	fmt.Println()
	fmt.Printf("Wrote bars for %d symbols to %s\n", len(symbols), dbPath)

	return nil
}

// fetch pulls the requested range. Daily data comes in one call; intraday
// granularities are fetched session by session.
func fetch(ctx context.Context, source provider.Provider, symbol string, start, end time.Time, granularity types.Granularity) ([]types.Bar, error) {
	if granularity == types.Granularity1d {
		return source.DailyBars(ctx, symbol, start, end)
	}

	var all []types.Bar

	for day := types.Day(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		bars, err := source.IntradayBars(ctx, symbol, day, granularity)
		if err != nil {
			return nil, err
		}

		all = append(all, bars...)
	}

	return all, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download historical bars into the local bar database",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "symbol",
				Aliases:  []string{"t"},
				Usage:    "Symbol to download (repeatable)",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "end",
				Aliases:  []string{"e"},
				Usage:    "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:    time.Now(),
				Required: false,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    fmt.Sprintf("Data provider (%s, %s, %s)", provider.TypePolygon, provider.TypeAlpaca, provider.TypeBinance),
				Value:    string(provider.TypePolygon),
				Required: false,
			},
			&cli.StringFlag{
				Name:     "granularity",
				Aliases:  []string{"g"},
				Usage:    "Bar granularity (1m, 5m, 15m, 30m, 1h, 1d)",
				Value:    string(types.Granularity1d),
				Required: false,
			},
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Path to the bar database",
				Value:    "data/bars.duckdb",
				Required: false,
			},
		},
		Action: downloadAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
