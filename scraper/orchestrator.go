package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"akiya_collector/config"
	"akiya_collector/grid"
	"akiya_collector/identity"
	"akiya_collector/ingest"
	"akiya_collector/models"
	"akiya_collector/storage"
)

// ErrRunInProgress is returned when a collection is requested while another
// one is still writing to the store.
var ErrRunInProgress = errors.New("collection already running")

// Archiver keeps a copy of each downloaded workbook.
type Archiver interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// GridLoader reads one sheet of a file.
type GridLoader func(path string, sheet grid.Sheet) (grid.Grid, error)

// ImportSummary is the outcome of importing one file.
type ImportSummary struct {
	DatasetID     string
	DataType      string
	Imported      int
	Skipped       int
	Failed        int
	Discrepancies int
}

// Orchestrator runs the resolve, download, archive and import steps for each dataset.
type Orchestrator struct {
	cfg        *config.Config
	store      ingest.Store
	recorder   storage.RunRecorder
	resolver   Resolver
	downloader *Downloader
	archiver   Archiver
	loadGrid   GridLoader
	logger     *zap.Logger
	paused     atomic.Bool
	running    atomic.Bool
}

func NewOrchestrator(cfg *config.Config, store ingest.Store, resolver Resolver, downloader *Downloader, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		resolver:   resolver,
		downloader: downloader,
		loadGrid:   grid.Load,
		logger:     logger,
	}
	if rec, ok := store.(storage.RunRecorder); ok {
		o.recorder = rec
	}
	return o
}

// SetArchiver enables archiving of downloaded workbooks.
func (o *Orchestrator) SetArchiver(a Archiver) {
	o.archiver = a
}

// SetRunRecorder overrides the recorder detected from the store.
func (o *Orchestrator) SetRunRecorder(r storage.RunRecorder) {
	o.recorder = r
}

func (o *Orchestrator) Pause()         { o.paused.Store(true) }
func (o *Orchestrator) Resume()        { o.paused.Store(false) }
func (o *Orchestrator) IsPaused() bool { return o.paused.Load() }

// acquire claims the single collection slot. Callers must release it.
func (o *Orchestrator) acquire() error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	return nil
}

func (o *Orchestrator) release() { o.running.Store(false) }

// RunAll collects every configured dataset in id order. A failing dataset is
// logged and does not stop the rest. Only one RunAll or RunDataset runs at a
// time; an overlapping call returns ErrRunInProgress.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.IsPaused() {
		o.logger.Info("collector is paused, skipping run")
		return nil
	}
	if err := o.acquire(); err != nil {
		return err
	}
	defer o.release()

	var failed []string
	for _, id := range o.cfg.DatasetIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := o.runDataset(ctx, id); err != nil {
			o.logger.Error("dataset run failed", zap.String("dataset", id), zap.Error(err))
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d dataset(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// RunDataset collects one dataset. It shares the collection slot with RunAll.
func (o *Orchestrator) RunDataset(ctx context.Context, datasetID string) (*ImportSummary, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()
	return o.runDataset(ctx, datasetID)
}

func (o *Orchestrator) runDataset(ctx context.Context, datasetID string) (*ImportSummary, error) {
	ds, ok := o.cfg.Datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("unknown dataset: %s", datasetID)
	}

	run := models.NewImportRun(datasetID)
	if o.recorder != nil {
		if err := o.recorder.CreateRun(ctx, run); err != nil {
			o.logger.Warn("failed to record run", zap.Error(err))
		}
	}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if o.recorder != nil {
			if err := o.recorder.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
				o.logger.Warn("failed to update run", zap.Error(err))
			}
		}
	}()

	o.log(ctx, run, models.LogLevelInfo, fmt.Sprintf("starting collection: %s", ds.Description))

	summary, err := o.collect(ctx, ds, run)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(ctx, run, models.LogLevelError, err.Error())
		return nil, err
	}

	run.Status = models.RunStatusCompleted
	run.RowsImported = summary.Imported
	run.RowsSkipped = summary.Skipped
	run.ErrorsCount = summary.Failed
	o.log(ctx, run, models.LogLevelInfo, fmt.Sprintf("completed: %d imported, %d skipped, %d failed",
		summary.Imported, summary.Skipped, summary.Failed))
	return summary, nil
}

func (o *Orchestrator) collect(ctx context.Context, ds *config.DatasetConfig, run *models.ImportRun) (*ImportSummary, error) {
	fileURL, err := o.resolver.ResolveFileURL(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	run.SourceURL = fileURL
	o.log(ctx, run, models.LogLevelInfo, "file url: "+fileURL)

	dl, err := o.downloader.Download(ctx, fileURL, ds.Filename)
	if err != nil {
		return nil, err
	}
	run.FileHash = dl.Hash
	o.log(ctx, run, models.LogLevelInfo, fmt.Sprintf("downloaded %s (%d bytes, sha256 %s)",
		filepath.Base(dl.Path), dl.Size, identity.Short(dl.Hash)))

	if o.archiver != nil {
		if err := o.archive(ctx, ds, dl); err != nil {
			o.log(ctx, run, models.LogLevelWarn, fmt.Sprintf("archive failed: %v", err))
		}
	}

	return o.ImportFile(ctx, ds, dl.Path)
}

func (o *Orchestrator) archive(ctx context.Context, ds *config.DatasetConfig, dl *DownloadResult) error {
	f, err := os.Open(dl.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	ext := filepath.Ext(dl.Path)
	return o.archiver.Upload(ctx, storage.ArchiveKey(ds.ID, dl.Hash, ext), f, contentTypeFor(ext))
}

// ImportFile loads the dataset's sheet from path and imports it by data type.
func (o *Orchestrator) ImportFile(ctx context.Context, ds *config.DatasetConfig, path string) (*ImportSummary, error) {
	g, err := o.loadGrid(path, ds.Sheet())
	if err != nil {
		return nil, fmt.Errorf("load %s sheet %s: %w", filepath.Base(path), ds.Sheet(), err)
	}

	var opts []ingest.Option
	if ds.ValueColumn != nil {
		opts = append(opts, ingest.WithAgeValueColumn(*ds.ValueColumn))
	}
	importer := ingest.NewImporter(o.store, ingest.NewLocator(o.cfg.PrefectureCode), o.cfg.ImportYear,
		o.logger.With(zap.String("dataset", ds.ID)), opts...)

	summary := &ImportSummary{DatasetID: ds.ID, DataType: ds.DataType}
	switch ds.DataType {
	case config.DataTypeVacancy:
		res, err := importer.ImportVacancyTable(ctx, g)
		if err != nil {
			return nil, err
		}
		summary.Imported = res.Imported
		summary.Skipped = len(res.Skipped)
		summary.Failed = len(res.Failures)
		summary.Discrepancies = len(res.Discrepancies)
	case config.DataTypeHouseAge:
		res, err := importer.ImportAgeTable(ctx, g)
		if err != nil {
			return nil, err
		}
		summary.Imported = res.Imported
		summary.Skipped = len(res.Skipped)
		summary.Failed = len(res.Failures)
	default:
		return nil, fmt.Errorf("unknown data type: %s", ds.DataType)
	}
	return summary, nil
}

// HandleCommand applies a queued daemon command.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	var params models.CommandParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return fmt.Errorf("command %d params: %w", cmd.ID, err)
		}
	}

	switch cmd.Command {
	case models.CmdCollectNow:
		return o.RunAll(ctx)
	case models.CmdCollectDataset:
		if params.Dataset == "" {
			return fmt.Errorf("command %d: %s needs a dataset", cmd.ID, cmd.Command)
		}
		_, err := o.RunDataset(ctx, params.Dataset)
		return err
	case models.CmdPause:
		o.Pause()
		o.logger.Info("collector paused")
	case models.CmdResume:
		o.Resume()
		o.logger.Info("collector resumed")
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

func (o *Orchestrator) log(ctx context.Context, run *models.ImportRun, level models.LogLevel, message string) {
	fields := []zap.Field{zap.String("dataset", run.DatasetID), zap.String("run", run.ID.String())}
	switch level {
	case models.LogLevelError:
		o.logger.Error(message, fields...)
	case models.LogLevelWarn:
		o.logger.Warn(message, fields...)
	default:
		o.logger.Info(message, fields...)
	}
	if o.recorder != nil {
		if err := o.recorder.Log(context.WithoutCancel(ctx), &run.ID, level, message, run.DatasetID); err != nil {
			o.logger.Warn("failed to record log line", append(fields, zap.Error(err))...)
		}
	}
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".csv":
		return "text/csv"
	case ".xlsm":
		return "application/vnd.ms-excel.sheet.macroEnabled.12"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}
