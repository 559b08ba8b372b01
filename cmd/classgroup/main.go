package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/classgroup/internal/classgroup"
	corecfg "github.com/aevon-lab/classgroup/internal/core/config"
	coreerrors "github.com/aevon-lab/classgroup/internal/core/errors"
	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/storage/memory"
	"github.com/aevon-lab/classgroup/internal/core/storage/postgres"
	"github.com/aevon-lab/classgroup/internal/migrations"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	backend := flag.String("backend", "", "Dataset backend (postgres or memory)")
	datasetRef := flag.String("dataset", "", "Dataset to group (schema.table, or fixture path for the memory backend)")
	fields := flag.String("fields", "", "Semicolon separated input fields")
	baseName := flag.String("basename", "", "Base name of the output fields")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	// -dataset names a table for postgres and a fixture file for memory;
	// each backend reads only its own key.
	overrides := map[string]string{
		"dataset.backend":    *backend,
		"dataset.ref":        *datasetRef,
		"dataset.path":       *datasetRef,
		"grouping.fields":    *fields,
		"grouping.base_name": *baseName,
	}

	cfg, err := corecfg.Load(*configPath, overrides)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"backend", cfg.Dataset.Backend,
		"dataset", datasetName(cfg),
		"fields", cfg.Grouping.Fields,
		"base_name", cfg.Grouping.BaseName)

	// 2. Cancel the run on SIGINT/SIGTERM; the runner stops between combinations.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		var stageErr *coreerrors.StageError
		if errors.As(err, &stageErr) {
			slog.Error("Class grouping failed", "stage", stageErr.Stage, "error", stageErr.Err)
		} else {
			slog.Error("Class grouping failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *corecfg.Config) error {
	runCfg := classgroup.Config{
		Fields:        cfg.Grouping.FieldList(),
		BaseName:      cfg.Grouping.BaseName,
		FilterFalsy:   cfg.Grouping.FilterFalsy,
		ChainOperator: cfg.Grouping.ChainOperator,
		VerboseLimit:  cfg.Grouping.VerboseLimit,
	}

	switch cfg.Dataset.Backend {
	case corecfg.BackendMemory:
		return runMemory(ctx, cfg, runCfg)
	case corecfg.BackendPostgres:
		return runPostgres(ctx, cfg, runCfg)
	}
	return coreerrors.Fatal(coreerrors.StageConfig, fmt.Errorf("unsupported backend %q", cfg.Dataset.Backend))
}

func runPostgres(ctx context.Context, cfg *corecfg.Config, runCfg classgroup.Config) error {
	// 3. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		return coreerrors.Fatal(coreerrors.StageOpen, err)
	}
	defer dbAdapter.Close()

	// 3.1. Run journal migrations
	var journal classgroup.Journal
	if cfg.Journal.Enabled {
		if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
			return coreerrors.Fatal(coreerrors.StageOpen, err)
		}
		journalAdapter, err := postgres.NewJournalAdapter(dbAdapter.DB())
		if err != nil {
			return coreerrors.Fatal(coreerrors.StageOpen, err)
		}
		defer journalAdapter.Close()
		journal = journalAdapter
	}

	// 4. Open dataset
	table, err := dbAdapter.OpenTable(ctx, cfg.Dataset.Ref, cfg.Dataset.IDField)
	if err != nil {
		return coreerrors.Fatal(coreerrors.StageOpen, err)
	}

	return runGrouping(ctx, table, journal, runCfg)
}

func runMemory(ctx context.Context, cfg *corecfg.Config, runCfg classgroup.Config) error {
	// 3. Load fixture
	ds, err := memory.Load(cfg.Dataset.Path)
	if err != nil {
		return coreerrors.Fatal(coreerrors.StageOpen, err)
	}

	runErr := runGrouping(ctx, ds, nil, runCfg)

	// Fields may already have been added and records stamped; persist what happened.
	if err := ds.Save(cfg.Dataset.Path); err != nil {
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	slog.Info("[Memory] Saved dataset", "path", cfg.Dataset.Path, "records", ds.Len())
	return runErr
}

func runGrouping(ctx context.Context, ds storage.Dataset, journal classgroup.Journal, runCfg classgroup.Config) error {
	// 5. Run
	runner := classgroup.NewRunner(ds, journal)
	summary, err := runner.Run(ctx, runCfg)
	if err != nil {
		return err
	}

	slog.Info("Class grouping finished",
		"run_id", summary.RunID,
		"num_field", summary.NumField,
		"text_field", summary.TextField,
		"combinations", summary.Combinations,
		"skipped", summary.Skipped)
	return nil
}

func datasetName(cfg *corecfg.Config) string {
	if cfg.Dataset.Backend == corecfg.BackendMemory {
		return cfg.Dataset.Path
	}
	return cfg.Dataset.Ref
}
