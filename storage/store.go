package storage

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"akiya_collector/models"
)

// ErrConstraintViolation is wrapped by writes rejected for referencing a
// region that does not exist.
var ErrConstraintViolation = errors.New("constraint violation")

// Store persists regions and their survey records.
type Store interface {
	UpsertRegion(ctx context.Context, r models.Region) error
	UpsertVacancyRecord(ctx context.Context, rec models.VacancyRecord) error
	UpsertAgeRecord(ctx context.Context, rec models.AgeRecord) error

	ListRegions(ctx context.Context) ([]models.Region, error)
	VacancyRecordsFor(ctx context.Context, code string) ([]models.VacancyRecord, error)
	AgeRecordsFor(ctx context.Context, code string) ([]models.AgeRecord, error)
	VacancyRecordsByYear(ctx context.Context, year int) ([]models.VacancyRecord, error)
	AgeRecordsByYear(ctx context.Context, year int) ([]models.AgeRecord, error)

	Close() error
}

// RunRecorder keeps the history of collection runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.ImportRun) error
	UpdateRun(ctx context.Context, run *models.ImportRun) error
	Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, datasetID string) error
	RecentRuns(ctx context.Context, limit int) ([]models.ImportRun, error)
}

// CommandQueue carries requests from the command line to the running daemon.
type CommandQueue interface {
	EnqueueCommand(ctx context.Context, cmd models.CommandType, params models.CommandParams) (int64, error)
	PendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64) error
}

const (
	tableRegions = "regions"
	tableVacancy = "vacancy_records"
	tableAge     = "age_records"
)

var (
	regionColumns  = []string{"code", "name"}
	vacancyColumns = []string{
		"region_code", "year", "total_dwellings", "total_vacant",
		"for_rent", "for_sale", "secondary_use", "other",
	}
	ageColumns = []string{
		"region_code", "year", "pre_1970", "y1971_1980", "y1981_1990",
		"y1991_2000", "y2001_2010", "y2011_2020", "y2021_2023",
	}
)

func builder(format sq.PlaceholderFormat) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(format)
}

func regionsQuery(b sq.StatementBuilderType) sq.SelectBuilder {
	return b.Select(regionColumns...).From(tableRegions).OrderBy("code")
}

func vacancyQuery(b sq.StatementBuilderType, where sq.Eq) sq.SelectBuilder {
	return b.Select(vacancyColumns...).From(tableVacancy).Where(where).OrderBy("year", "region_code")
}

func ageQuery(b sq.StatementBuilderType, where sq.Eq) sq.SelectBuilder {
	return b.Select(ageColumns...).From(tableAge).Where(where).OrderBy("year", "region_code")
}

// scanner is satisfied by *sql.Rows and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVacancy(row scanner) (models.VacancyRecord, error) {
	var r models.VacancyRecord
	err := row.Scan(&r.RegionCode, &r.Year, &r.TotalDwellings, &r.TotalVacant,
		&r.ForRent, &r.ForSale, &r.SecondaryUse, &r.Other)
	return r, err
}

func scanAge(row scanner) (models.AgeRecord, error) {
	var r models.AgeRecord
	err := row.Scan(&r.RegionCode, &r.Year, &r.Pre1970, &r.Y1971to1980, &r.Y1981to1990,
		&r.Y1991to2000, &r.Y2001to2010, &r.Y2011to2020, &r.Y2021to2023)
	return r, err
}

func vacancyValues(r models.VacancyRecord) []any {
	return []any{r.RegionCode, r.Year, r.TotalDwellings, r.TotalVacant,
		r.ForRent, r.ForSale, r.SecondaryUse, r.Other}
}

func ageValues(r models.AgeRecord) []any {
	return []any{r.RegionCode, r.Year, r.Pre1970, r.Y1971to1980, r.Y1981to1990,
		r.Y1991to2000, r.Y2001to2010, r.Y2011to2020, r.Y2021to2023}
}

func upsertRegionQuery(b sq.StatementBuilderType, r models.Region) sq.InsertBuilder {
	return b.Insert(tableRegions).
		Columns(regionColumns...).
		Values(r.Code, r.Name).
		Suffix("ON CONFLICT (code) DO NOTHING")
}

func upsertVacancyQuery(b sq.StatementBuilderType, r models.VacancyRecord) sq.InsertBuilder {
	return b.Insert(tableVacancy).
		Columns(vacancyColumns...).
		Values(vacancyValues(r)...).
		Suffix(onConflictReplace([]string{"region_code", "year"}, vacancyColumns[2:]))
}

func upsertAgeQuery(b sq.StatementBuilderType, r models.AgeRecord) sq.InsertBuilder {
	return b.Insert(tableAge).
		Columns(ageColumns...).
		Values(ageValues(r)...).
		Suffix(onConflictReplace([]string{"region_code", "year"}, ageColumns[2:]))
}

// onConflictReplace builds an upsert clause that overwrites every non-key column.
func onConflictReplace(keys, cols []string) string {
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = c + " = excluded." + c
	}
	return "ON CONFLICT (" + strings.Join(keys, ", ") + ") DO UPDATE SET " + strings.Join(set, ", ")
}

var (
	_ Store        = (*SQLiteStore)(nil)
	_ RunRecorder  = (*SQLiteStore)(nil)
	_ CommandQueue = (*SQLiteStore)(nil)
	_ Store        = (*PostgresStore)(nil)
)
