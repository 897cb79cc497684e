package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"akiya_collector/config"
	"akiya_collector/grid"
	"akiya_collector/httputil"
	"akiya_collector/identity"
	"akiya_collector/ingest"
	"akiya_collector/logging"
	"akiya_collector/models"
	"akiya_collector/scheduler"
	"akiya_collector/scraper"
	"akiya_collector/storage"
	"akiya_collector/validate"
)

var (
	collectNow    = flag.Bool("collect", false, "Collect and import every dataset once, then exit")
	datasetID     = flag.String("dataset", "", "Collect and import a single dataset, then exit")
	importVacancy = flag.String("import-vacancy", "", "Import a local vacant-dwellings workbook")
	importAge     = flag.String("import-age", "", "Import a local construction-period workbook")
	sheetFlag     = flag.String("sheet", "0", "Sheet name or zero-based index for -import-*")
	runValidate   = flag.Bool("validate", false, "Print the consistency report for the import year")
	listRegions   = flag.Bool("regions", false, "List stored regions")
	showRuns      = flag.Int("runs", 0, "Print the N most recent import runs with their log lines")
	resetData     = flag.Bool("reset", false, "Delete all records, runs and queued commands from the SQLite database")
	commandName   = flag.String("command", "", "Queue a command for the running daemon (collect_now, collect_dataset, pause, resume)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting akiya_collector",
		zap.Int("datasets", len(cfg.Datasets)),
		zap.String("prefecture", cfg.PrefectureCode),
		zap.Int("year", cfg.ImportYear),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, local, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	switch {
	case *commandName != "":
		return enqueueCommand(ctx, local, *commandName, *datasetID, logger)
	case *showRuns > 0:
		return printRuns(ctx, os.Stdout, local, *showRuns)
	case *resetData:
		if err := local.ResetAllData(); err != nil {
			return err
		}
		logger.Warn("sqlite database cleared", zap.String("path", cfg.Store.DBPath))
		return nil
	}

	clients := httputil.NewClients(cfg.Scraper)
	resolver, err := scraper.NewResolver(cfg.Scraper, clients, logger)
	if err != nil {
		return err
	}
	defer resolver.Close()

	downloader := scraper.NewDownloader(clients.Download, cfg.DownloadDir, cfg.Scraper.DownloadRetries, logger)
	orchestrator := scraper.NewOrchestrator(cfg, store, resolver, downloader, logger)
	orchestrator.SetRunRecorder(local)

	if s3cfg := storage.S3Config(cfg.Archive); s3cfg.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, s3cfg)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		orchestrator.SetArchiver(uploader)
		logger.Info("archiving workbooks", zap.String("bucket", cfg.Archive.Bucket))
	}

	switch {
	case *importVacancy != "":
		return importFile(ctx, orchestrator, cfg, config.DataTypeVacancy, *importVacancy, logger)
	case *importAge != "":
		return importFile(ctx, orchestrator, cfg, config.DataTypeHouseAge, *importAge, logger)
	case *datasetID != "":
		summary, err := orchestrator.RunDataset(ctx, *datasetID)
		if err != nil {
			return err
		}
		logSummary(logger, summary)
		return nil
	case *collectNow:
		return orchestrator.RunAll(ctx)
	case *runValidate:
		loc := ingest.NewLocator(cfg.PrefectureCode)
		report, err := validate.Check(ctx, store, loc.PrefectureCode(), cfg.ImportYear)
		if err != nil {
			return err
		}
		return report.Write(os.Stdout)
	case *listRegions:
		regions, err := store.ListRegions(ctx)
		if err != nil {
			return err
		}
		for _, r := range regions {
			fmt.Printf("%s\t%s\n", r.Code, r.Name)
		}
		return nil
	}

	// Daemon mode
	sched := scheduler.New(cfg.Scheduler.Cron, orchestrator, logger)
	sched.SetCommands(local, orchestrator)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	logger.Info("daemon running, press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info("shutting down")
	sched.Stop()
	return nil
}

// openStore returns the record store and the local SQLite store that holds
// run history and the command queue. With Postgres as the record store, both
// are still kept in the SQLite file.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, *storage.SQLiteStore, func(), error) {
	sqliteStore, err := storage.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	logger.Info("sqlite database", zap.String("path", cfg.Store.DBPath))

	if cfg.Store.Driver != "postgres" {
		return sqliteStore, sqliteStore, func() { sqliteStore.Close() }, nil
	}

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		sqliteStore.Close()
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to postgres", zap.String("url", maskConnectionString(cfg.Store.DatabaseURL)))

	closeAll := func() {
		pgStore.Close()
		sqliteStore.Close()
	}
	return pgStore, sqliteStore, closeAll, nil
}

func enqueueCommand(ctx context.Context, queue storage.CommandQueue, name, dataset string, logger *zap.Logger) error {
	cmd, ok := models.ParseCommandType(name)
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	if cmd == models.CmdCollectDataset && dataset == "" {
		return fmt.Errorf("%s requires -dataset", cmd)
	}

	id, err := queue.EnqueueCommand(ctx, cmd, models.CommandParams{Dataset: dataset})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", cmd, err)
	}
	logger.Info("command queued", zap.Int64("id", id), zap.String("command", string(cmd)))
	return nil
}

func printRuns(ctx context.Context, w io.Writer, store *storage.SQLiteStore, limit int) error {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDATASET\tSTATUS\tIMPORTED\tSKIPPED\tERRORS\tHASH")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Format("2006-01-02 15:04"), run.DatasetID, run.Status,
			run.RowsImported, run.RowsSkipped, run.ErrorsCount, identity.Short(run.FileHash))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, run := range runs {
		logs, err := store.RunLogs(ctx, run.ID)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s %s\n", run.DatasetID, run.ID)
		for _, l := range logs {
			fmt.Fprintf(w, "  %s [%s] %s\n", l.Timestamp.Format("15:04:05"), l.Level, l.Message)
		}
	}
	return nil
}

func importFile(ctx context.Context, o *scraper.Orchestrator, cfg *config.Config, dataType, path string, logger *zap.Logger) error {
	ds := &config.DatasetConfig{ID: "manual_" + dataType, DataType: dataType}
	if idx, err := strconv.Atoi(*sheetFlag); err == nil {
		ds.SheetIndex = idx
	} else {
		ds.SheetName = *sheetFlag
	}
	for _, configured := range cfg.Datasets {
		if configured.DataType == dataType && configured.ValueColumn != nil {
			ds.ValueColumn = configured.ValueColumn
			break
		}
	}

	logger.Info("importing file", zap.String("path", path), zap.String("type", dataType), zap.Stringer("sheet", grid.Sheet{Name: ds.SheetName, Index: ds.SheetIndex}))
	summary, err := o.ImportFile(ctx, ds, path)
	if err != nil {
		return err
	}
	logSummary(logger, summary)
	return nil
}

func logSummary(logger *zap.Logger, s *scraper.ImportSummary) {
	logger.Info("import finished",
		zap.String("dataset", s.DatasetID),
		zap.String("type", s.DataType),
		zap.Int("imported", s.Imported),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("discrepancies", s.Discrepancies),
	)
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
