package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vantaa-jobs-etl/config"
	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/observability"
	"vantaa-jobs-etl/scraper/vantaa"
	"vantaa-jobs-etl/services"
	"vantaa-jobs-etl/storage"
	"vantaa-jobs-etl/utils"
)

const usage = `usage: vantaa-etl [-config file.yaml] [command]

commands:
  run      extract, transform and load the listings (default)
  init     create the listings table
  reset    delete the SQLite file (drop the table on other drivers)
  export   write stored listings to CSV (-out path, default stdout)
  report   print an insight report over stored listings
`

func main() {
	configPath := flag.String("config", "", "YAML config file (overrides ETL_CONFIG)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logger := utils.NewLogger()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	cmd := "run"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger}
	switch cmd {
	case "run":
		err = a.withLock(func() error { return a.runPipeline(ctx) })
	case "init":
		err = a.withLock(func() error { return a.initStore(ctx) })
	case "reset":
		err = a.withLock(func() error { return a.reset(ctx) })
	case "export":
		err = a.export(ctx, args)
	case "report":
		err = a.report(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("%s: %v", cmd, err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *utils.Logger
}

func (a *app) storeOptions() storage.Options {
	return storage.Options{
		Driver:      a.cfg.DBDriver,
		DSN:         a.cfg.DatabaseURL,
		IDType:      storage.ColumnType(a.cfg.IDColumnType),
		MaxAttempts: a.cfg.DBConnectRetries,
		RetryDelay:  time.Second,
		Logger:      a.logger,
	}
}

func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	return storage.Open(ctx, a.storeOptions())
}

func (a *app) withLock(fn func() error) error {
	lock, err := utils.AcquireRunLock(a.cfg.LockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("Releasing run lock: %v", err)
		}
	}()
	return fn()
}

func (a *app) runPipeline(ctx context.Context) error {
	a.logger.Info("=== Vantaa job listings ETL starting ===")
	a.logger.Info("Config: api=%s | driver=%s | id column=%s | timeout=%ds",
		a.cfg.APIURL, a.cfg.DBDriver, a.cfg.IDColumnType, a.cfg.HTTPTimeout)

	metrics := observability.NewMetrics()
	pipeline := services.NewPipeline(
		vantaa.New(a.cfg, a.logger),
		services.NewTransformer(a.logger),
		storage.NewSQLWriter(a.logger),
		a.openStore,
		metrics,
		a.logger,
	)

	report, runErr := pipeline.Run(ctx)

	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.Warn("%v", err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("\n  Done. Run %s loaded %d listings into %s (%s)\n\n",
		report.RunID, report.Loaded, storage.TableName, a.cfg.DBDriver)
	return nil
}

func (a *app) initStore(ctx context.Context) error {
	if a.cfg.DBDriver == "sqlite" {
		if err := storage.EnsureDir(a.cfg.DatabaseURL); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}
	a.logger.Info("Table %s ready (id column %s)", storage.TableName, a.cfg.IDColumnType)
	return nil
}

func (a *app) reset(ctx context.Context) error {
	if a.cfg.DBDriver == "sqlite" {
		storage.ResetFile(a.cfg.DatabaseURL, a.logger)
		return nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.DropTable(ctx)
}

func (a *app) fetchStored(ctx context.Context) ([]models.NormalizedListing, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.FetchAll(ctx)
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "", "CSV output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	listings, err := a.fetchStored(ctx)
	if err != nil {
		return err
	}

	if *out == "" {
		return storage.WriteCSV(os.Stdout, listings)
	}

	w, err := storage.NewCSVWriter(*out)
	if err != nil {
		return err
	}
	if err := w.WriteListings(listings); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	a.logger.Info("Exported %d listings to %s", len(listings), *out)
	return nil
}

func (a *app) report(ctx context.Context) error {
	listings, err := a.fetchStored(ctx)
	if err != nil {
		return err
	}
	svc := services.NewInsightService(a.logger)
	svc.Print(os.Stdout, svc.Generate(listings, models.DateOf(time.Now())))
	return nil
}
