package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"akiya_collector/models"
)

type SQLiteStore struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, qb: builder(sq.Question)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vacancy_records (
		region_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_dwellings INTEGER NOT NULL DEFAULT 0,
		total_vacant INTEGER NOT NULL DEFAULT 0,
		for_rent INTEGER NOT NULL DEFAULT 0,
		for_sale INTEGER NOT NULL DEFAULT 0,
		secondary_use INTEGER NOT NULL DEFAULT 0,
		other INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (region_code, year),
		FOREIGN KEY (region_code) REFERENCES regions(code)
	);

	CREATE TABLE IF NOT EXISTS age_records (
		region_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		pre_1970 INTEGER NOT NULL DEFAULT 0,
		y1971_1980 INTEGER NOT NULL DEFAULT 0,
		y1981_1990 INTEGER NOT NULL DEFAULT 0,
		y1991_2000 INTEGER NOT NULL DEFAULT 0,
		y2001_2010 INTEGER NOT NULL DEFAULT 0,
		y2011_2020 INTEGER NOT NULL DEFAULT 0,
		y2021_2023 INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (region_code, year),
		FOREIGN KEY (region_code) REFERENCES regions(code)
	);

	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		dataset_id TEXT,
		source_url TEXT,
		file_hash TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		rows_imported INTEGER DEFAULT 0,
		rows_skipped INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS import_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		dataset_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_vacancy_year ON vacancy_records(year);
	CREATE INDEX IF NOT EXISTS idx_age_year ON age_records(year);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON import_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON import_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn in a transaction, committing on success and rolling back otherwise.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return translateSQLiteErr(err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) execInsert(ctx context.Context, q sq.InsertBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
}

// UpsertRegion inserts the region unless its code already exists. The stored
// name is never overwritten.
func (s *SQLiteStore) UpsertRegion(ctx context.Context, r models.Region) error {
	return s.execInsert(ctx, upsertRegionQuery(s.qb, r))
}

func (s *SQLiteStore) UpsertVacancyRecord(ctx context.Context, rec models.VacancyRecord) error {
	return s.execInsert(ctx, upsertVacancyQuery(s.qb, rec))
}

func (s *SQLiteStore) UpsertAgeRecord(ctx context.Context, rec models.AgeRecord) error {
	return s.execInsert(ctx, upsertAgeQuery(s.qb, rec))
}

func (s *SQLiteStore) IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

func translateSQLiteErr(err error) error {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	return err
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]models.Region, error) {
	query, args, err := regionsQuery(s.qb).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regions := []models.Region{}
	for rows.Next() {
		var r models.Region
		if err := rows.Scan(&r.Code, &r.Name); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

func (s *SQLiteStore) VacancyRecordsFor(ctx context.Context, code string) ([]models.VacancyRecord, error) {
	return s.queryVacancy(ctx, vacancyQuery(s.qb, sq.Eq{"region_code": code}))
}

func (s *SQLiteStore) VacancyRecordsByYear(ctx context.Context, year int) ([]models.VacancyRecord, error) {
	return s.queryVacancy(ctx, vacancyQuery(s.qb, sq.Eq{"year": year}))
}

func (s *SQLiteStore) AgeRecordsFor(ctx context.Context, code string) ([]models.AgeRecord, error) {
	return s.queryAge(ctx, ageQuery(s.qb, sq.Eq{"region_code": code}))
}

func (s *SQLiteStore) AgeRecordsByYear(ctx context.Context, year int) ([]models.AgeRecord, error) {
	return s.queryAge(ctx, ageQuery(s.qb, sq.Eq{"year": year}))
}

func (s *SQLiteStore) queryVacancy(ctx context.Context, q sq.SelectBuilder) ([]models.VacancyRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.VacancyRecord{}
	for rows.Next() {
		r, err := scanVacancy(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) queryAge(ctx context.Context, q sq.SelectBuilder) ([]models.AgeRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.AgeRecord{}
	for rows.Next() {
		r, err := scanAge(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, dataset_id, source_url, file_hash, started_at, status,
			rows_imported, rows_skipped, errors_count)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0)`,
		run.ID.String(), run.DatasetID, run.SourceURL, run.FileHash, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_runs SET source_url = ?, file_hash = ?, finished_at = ?, status = ?,
			rows_imported = ?, rows_skipped = ?, errors_count = ?
		WHERE id = ?`,
		run.SourceURL, run.FileHash, run.FinishedAt, run.Status,
		run.RowsImported, run.RowsSkipped, run.ErrorsCount, run.ID.String())
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, datasetID string) error {
	var id any
	if runID != nil {
		id = runID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (run_id, timestamp, level, message, dataset_id)
		VALUES (?, ?, ?, ?, ?)`,
		id, time.Now(), level, message, datasetID)
	return err
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, source_url, file_hash, started_at, finished_at, status,
			rows_imported, rows_skipped, errors_count
		FROM import_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ImportRun
	for rows.Next() {
		var run models.ImportRun
		var id string
		var finished sql.NullTime
		if err := rows.Scan(&id, &run.DatasetID, &run.SourceURL, &run.FileHash, &run.StartedAt,
			&finished, &run.Status, &run.RowsImported, &run.RowsSkipped, &run.ErrorsCount); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunLogs returns the log lines of one run in time order.
func (s *SQLiteStore) RunLogs(ctx context.Context, runID uuid.UUID) ([]models.ImportLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, level, message, dataset_id
		FROM import_logs WHERE run_id = ? ORDER BY timestamp, id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ImportLog
	for rows.Next() {
		l := models.ImportLog{RunID: runID}
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.DatasetID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) EnqueueCommand(ctx context.Context, cmd models.CommandType, params models.CommandParams) (int64, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, string(data), time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) PendingCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, params, created_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// ResetAllData clears all imported records and run history.
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{"commands", "import_logs", "import_runs", "age_records", "vacancy_records", "regions"}
	for _, t := range tables {
		if _, err := s.db.Exec("DELETE FROM " + t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}
