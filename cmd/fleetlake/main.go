package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/fleetlake/fleetlake/internal/config"
	"github.com/fleetlake/fleetlake/internal/logging"
	"github.com/fleetlake/fleetlake/internal/pipeline"
	"github.com/fleetlake/fleetlake/internal/sheets"
	"github.com/fleetlake/fleetlake/internal/warehouse"
)

func main() {
	app := &cli.App{
		Name:  "fleetlake",
		Usage: "medallion pipeline: spreadsheet source -> bronze -> silver",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the full pipeline (extract, bronze, silver)",
				Flags:  entityFlags(),
				Action: stageAction(pipeline.StageAll),
			},
			{
				Name:   "bronze",
				Usage:  "extract from the source and load the bronze layer only",
				Flags:  entityFlags(),
				Action: stageAction(pipeline.StageBronze),
			},
			{
				Name:   "silver",
				Usage:  "validate persisted bronze data and build the silver layer only",
				Flags:  entityFlags(),
				Action: stageAction(pipeline.StageSilver),
			},
			{
				Name:   "migrate",
				Usage:  "apply warehouse migrations (log tables, silver constraints)",
				Action: migrateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func entityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "entity",
			Usage: "limit the run to the named entities (repeatable)",
		},
	}
}

// setup loads .env, configuration, and logging. Shared by every command.
func setup() (*config.Config, error) {
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// openPool connects a configured pgx pool and verifies the connection.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func stageAction(stage pipeline.Stage) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context, cfg.Pipeline.RunTimeout)
		defer cancel()

		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		src := sheets.New(sheets.Options{
			BaseURL:       cfg.Source.ExportBaseURL,
			SpreadsheetID: cfg.Source.SpreadsheetID,
			Timeout:       cfg.Source.Timeout,
			RetryMax:      cfg.Source.RetryMax,
		})

		runner := pipeline.NewRunner(src, warehouse.NewStore(pool))
		reports, runErr := runner.Run(ctx, pipeline.Options{
			Stage:    stage,
			Entities: c.StringSlice("entity"),
			Workers:  cfg.Pipeline.Workers,
		})

		pipeline.RenderReports(os.Stdout, reports)
		return runErr
	}
}

func migrateAction(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	if err := warehouse.Migrate(cfg.Database.URL); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}
