package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/quantatrix/backlab/internal/engine"
	"github.com/quantatrix/backlab/internal/journal"
	"github.com/quantatrix/backlab/internal/logger"
	"github.com/quantatrix/backlab/internal/strategy"
	"github.com/quantatrix/backlab/internal/strategy/exit"
	"github.com/quantatrix/backlab/internal/strategy/scan"
	"github.com/quantatrix/backlab/internal/strategy/size"
	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/bardata"
)

// newRegistry wires the built-in strategy components. Registration is explicit
// so the full component set is visible in one place.
func newRegistry() (*strategy.Registry, error) {
	registry := strategy.NewRegistry()

	if err := scan.Register(registry); err != nil {
		return nil, err
	}

	if err := exit.Register(registry); err != nil {
		return nil, err
	}

	if err := size.Register(registry); err != nil {
		return nil, err
	}

	return registry, nil
}

// buildExitPolicy creates the configured exit policies and composes them in
// listed order when there is more than one.
func buildExitPolicy(registry *strategy.Registry, env strategy.Env, configs []engine.ComponentConfig) (strategy.ExitPolicy, error) {
	policies := make([]strategy.ExitPolicy, 0, len(configs))

	for _, config := range configs {
		policy, err := registry.CreateExitPolicy(config.Name, env, config.Params)
		if err != nil {
			return nil, err
		}

		policies = append(policies, policy)
	}

	if len(policies) == 1 {
		return policies[0], nil
	}

	return exit.NewComposite(policies...)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dbPath := cmd.String("db")
	outputDir := cmd.String("output")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config, err := engine.ParseConfig(data)
	if err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	store, err := bardata.NewDuckDBStore(dbPath, appLog)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, err := newRegistry()
	if err != nil {
		return err
	}

	env := strategy.Env{Bars: store, Logger: appLog}

	// Scanners without an explicit universe inherit the configured symbols.
	scannerParams := config.Scanner.Params
	if scannerParams == nil {
		scannerParams = strategy.Params{}
	}

	if _, ok := scannerParams["symbols"]; !ok {
		scannerParams["symbols"] = config.Symbols
	}

	scanner, err := registry.CreateScanner(config.Scanner.Name, env, scannerParams)
	if err != nil {
		return err
	}

	exitPolicy, err := buildExitPolicy(registry, env, config.Exits)
	if err != nil {
		return err
	}

	sizer, err := registry.CreateSizer(config.Sizer.Name, env, config.Sizer.Params)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tradeJournal, err := journal.NewJournal(filepath.Join(outputDir, "journal.duckdb"), appLog)
	if err != nil {
		return err
	}
	defer tradeJournal.Close()

	backtest, err := engine.NewEngine(config, engine.Deps{
		Scanner:    scanner,
		ExitPolicy: exitPolicy,
		Sizer:      sizer,
		Bars:       store,
		Journal:    tradeJournal,
		Logger:     appLog,
	})
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	progress := func(day time.Time, current, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(fmt.Sprintf("Backtesting %s", config.StrategyName)),
				progressbar.OptionShowCount())
		}

		bar.Set(current)
	}

	results, err := backtest.Run(ctx, progress)
	if err != nil {
		return err
	}

	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	resultsPath := filepath.Join(outputDir, fmt.Sprintf("results-%s.yaml", results.RunID))
	if err := types.WriteResults(resultsPath, results); err != nil {
		return err
	}

	journalPath, err := tradeJournal.Export(outputDir)
	if err != nil {
		appLog.Warn("failed to export trade journal", zap.Error(err))
	} else {
		appLog.Info("trade journal exported", zap.String("path", journalPath))
	}

	fmt.Print(results.Summary())
	fmt.Printf("Results written to %s\n", resultsPath)

	return nil
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := engine.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	registry, err := newRegistry()
	if err != nil {
		return err
	}

	fmt.Println("Scanners:")

	for _, name := range registry.ListScanners() {
		fmt.Printf("  %s\n", name)
	}

	fmt.Println("Exit policies:")

	for _, name := range registry.ListExitPolicies() {
		fmt.Printf("  %s\n", name)
	}

	fmt.Println("Sizers:")

	for _, name := range registry.ListSizers() {
		fmt.Printf("  %s\n", name)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run daily-bar strategy backtests",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute a backtest described by a YAML config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the run configuration YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar database",
						Value:    "data/bars.duckdb",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Directory for results and the trade journal",
						Value:    "results",
						Required: false,
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the run configuration format",
				Action: schemaAction,
			},
			{
				Name:   "list",
				Usage:  "List the registered strategy components",
				Action: listAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
