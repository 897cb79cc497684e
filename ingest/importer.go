// Package ingest turns loosely structured survey sheets into region records
// and writes them through a Store.
package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"akiya_collector/grid"
	"akiya_collector/models"
)

// Store is the write side the importer needs.
type Store interface {
	UpsertRegion(ctx context.Context, r models.Region) error
	UpsertVacancyRecord(ctx context.Context, rec models.VacancyRecord) error
	UpsertAgeRecord(ctx context.Context, rec models.AgeRecord) error
}

// ConstraintChecker is implemented by stores that can tell a constraint
// violation apart from other write errors.
type ConstraintChecker interface {
	IsConstraintViolation(err error) bool
}

// RowFailure records a region whose write was rejected.
type RowFailure struct {
	RegionCode string
	Err        error
	Constraint bool
}

// Discrepancy is a region whose categories do not add up to its vacant total.
type Discrepancy struct {
	RegionCode  string
	TotalVacant int
	CategorySum int
}

// Diff is TotalVacant minus CategorySum.
func (d Discrepancy) Diff() int { return d.TotalVacant - d.CategorySum }

// VacancyImportResult reports what one vacancy sheet import wrote and left out.
type VacancyImportResult struct {
	Imported       int
	Failures       []RowFailure
	Skipped        []SkippedRow
	Discrepancies  []Discrepancy
	MissingColumns []string
}

// AgeImportResult reports what one construction-period sheet import wrote and
// left out.
type AgeImportResult struct {
	Imported int
	Failures []RowFailure
	Skipped  []SkippedRow
}

// Importer extracts records from a grid and persists them.
type Importer struct {
	store       Store
	locator     Locator
	year        int
	valueColumn int
	logger      *zap.Logger
}

// Option customizes an Importer.
type Option func(*Importer)

// WithAgeValueColumn overrides the column read for construction-period counts.
func WithAgeValueColumn(col int) Option {
	return func(im *Importer) { im.valueColumn = col }
}

// NewImporter returns an importer that tags every record with year and finds
// regions with loc. A nil logger discards log output.
func NewImporter(store Store, loc Locator, year int, logger *zap.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	im := &Importer{
		store:       store,
		locator:     loc,
		year:        year,
		valueColumn: DefaultAgeValueColumn,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportVacancyTable extracts every region of a vacancy sheet, then writes
// each region followed by its record. Extraction finishes before any write,
// so a missing header leaves the store untouched.
func (im *Importer) ImportVacancyTable(ctx context.Context, g grid.Grid) (*VacancyImportResult, error) {
	ext, err := ExtractVacancy(g, im.locator, im.year)
	if err != nil {
		return nil, err
	}

	res := &VacancyImportResult{
		Skipped:        ext.Skipped,
		MissingColumns: ext.MissingColumns,
	}
	for _, prefix := range ext.MissingColumns {
		im.logger.Warn("vacancy column missing, reading as zero", zap.String("prefix", prefix))
	}
	im.logSkipped(ext.Skipped)

	for _, row := range ext.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := im.writeVacancy(ctx, row); err != nil {
			res.Failures = append(res.Failures, im.failure(row.Region.Code, err))
			continue
		}
		res.Imported++

		if d := row.Record.Discrepancy(); d != 0 {
			res.Discrepancies = append(res.Discrepancies, Discrepancy{
				RegionCode:  row.Region.Code,
				TotalVacant: row.Record.TotalVacant,
				CategorySum: row.Record.CategorySum(),
			})
			im.logger.Debug("vacancy categories do not add up",
				zap.String("region", row.Region.Code),
				zap.Int("total_vacant", row.Record.TotalVacant),
				zap.Int("category_sum", row.Record.CategorySum()),
			)
		}
	}

	im.logger.Info("vacancy table imported",
		zap.Int("imported", res.Imported),
		zap.Int("failed", len(res.Failures)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// ImportAgeTable extracts construction-period counts per region and writes them.
func (im *Importer) ImportAgeTable(ctx context.Context, g grid.Grid) (*AgeImportResult, error) {
	ext, err := ExtractAge(g, im.locator, im.year, im.valueColumn)
	if err != nil {
		return nil, err
	}

	res := &AgeImportResult{Skipped: ext.Skipped}
	im.logSkipped(ext.Skipped)

	for _, row := range ext.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := im.store.UpsertRegion(ctx, row.Region); err != nil {
			res.Failures = append(res.Failures, im.failure(row.Region.Code, err))
			continue
		}
		if err := im.store.UpsertAgeRecord(ctx, row.Record); err != nil {
			res.Failures = append(res.Failures, im.failure(row.Region.Code, err))
			continue
		}
		res.Imported++
	}

	im.logger.Info("age table imported",
		zap.Int("imported", res.Imported),
		zap.Int("failed", len(res.Failures)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func (im *Importer) writeVacancy(ctx context.Context, row VacancyRow) error {
	if err := im.store.UpsertRegion(ctx, row.Region); err != nil {
		return err
	}
	return im.store.UpsertVacancyRecord(ctx, row.Record)
}

func (im *Importer) failure(code string, err error) RowFailure {
	f := RowFailure{RegionCode: code, Err: err}
	if cc, ok := im.store.(ConstraintChecker); ok {
		f.Constraint = cc.IsConstraintViolation(err)
	}
	level := zap.ErrorLevel
	if f.Constraint {
		level = zap.WarnLevel
	}
	im.logger.Log(level, "region write failed",
		zap.String("region", code),
		zap.Bool("constraint", f.Constraint),
		zap.Error(err),
	)
	return f
}

func (im *Importer) logSkipped(rows []SkippedRow) {
	for _, s := range rows {
		if s.Reason == SkipNoRegion {
			continue
		}
		im.logger.Info("row skipped",
			zap.Int("row", s.Row),
			zap.String("reason", string(s.Reason)),
			zap.String("region", s.Region),
		)
	}
}

// IsFatal reports whether err means the sheet could not be read at all.
func IsFatal(err error) bool {
	return errors.Is(err, ErrHeaderNotFound) || errors.Is(err, ErrDataStartNotFound)
}
