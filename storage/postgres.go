package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"akiya_collector/models"
)

// pgForeignKeyViolation is the SQLSTATE for foreign_key_violation.
const pgForeignKeyViolation = "23503"

type PostgresStore struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool, qb: builder(sq.Dollar)}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vacancy_records (
		region_code TEXT NOT NULL REFERENCES regions(code),
		year INTEGER NOT NULL,
		total_dwellings INTEGER NOT NULL DEFAULT 0,
		total_vacant INTEGER NOT NULL DEFAULT 0,
		for_rent INTEGER NOT NULL DEFAULT 0,
		for_sale INTEGER NOT NULL DEFAULT 0,
		secondary_use INTEGER NOT NULL DEFAULT 0,
		other INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (region_code, year)
	);

	CREATE TABLE IF NOT EXISTS age_records (
		region_code TEXT NOT NULL REFERENCES regions(code),
		year INTEGER NOT NULL,
		pre_1970 INTEGER NOT NULL DEFAULT 0,
		y1971_1980 INTEGER NOT NULL DEFAULT 0,
		y1981_1990 INTEGER NOT NULL DEFAULT 0,
		y1991_2000 INTEGER NOT NULL DEFAULT 0,
		y2001_2010 INTEGER NOT NULL DEFAULT 0,
		y2011_2020 INTEGER NOT NULL DEFAULT 0,
		y2021_2023 INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (region_code, year)
	);

	CREATE INDEX IF NOT EXISTS idx_vacancy_year ON vacancy_records(year);
	CREATE INDEX IF NOT EXISTS idx_age_year ON age_records(year);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Writes
// =============================================================================

func (s *PostgresStore) execInsert(ctx context.Context, q sq.InsertBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query, args...)
		return err
	})
	return translatePgErr(err)
}

func (s *PostgresStore) UpsertRegion(ctx context.Context, r models.Region) error {
	return s.execInsert(ctx, upsertRegionQuery(s.qb, r))
}

func (s *PostgresStore) UpsertVacancyRecord(ctx context.Context, rec models.VacancyRecord) error {
	return s.execInsert(ctx, upsertVacancyQuery(s.qb, rec))
}

func (s *PostgresStore) UpsertAgeRecord(ctx context.Context, rec models.AgeRecord) error {
	return s.execInsert(ctx, upsertAgeQuery(s.qb, rec))
}

func (s *PostgresStore) IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

func translatePgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
	}
	return err
}

// =============================================================================
// Reads
// =============================================================================

func (s *PostgresStore) ListRegions(ctx context.Context) ([]models.Region, error) {
	query, args, err := regionsQuery(s.qb).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) VacancyRecordsFor(ctx context.Context, code string) ([]models.VacancyRecord, error) {
	return s.queryVacancy(ctx, vacancyQuery(s.qb, sq.Eq{"region_code": code}))
}

func (s *PostgresStore) VacancyRecordsByYear(ctx context.Context, year int) ([]models.VacancyRecord, error) {
	return s.queryVacancy(ctx, vacancyQuery(s.qb, sq.Eq{"year": year}))
}

func (s *PostgresStore) AgeRecordsFor(ctx context.Context, code string) ([]models.AgeRecord, error) {
	return s.queryAge(ctx, ageQuery(s.qb, sq.Eq{"region_code": code}))
}

func (s *PostgresStore) AgeRecordsByYear(ctx context.Context, year int) ([]models.AgeRecord, error) {
	return s.queryAge(ctx, ageQuery(s.qb, sq.Eq{"year": year}))
}

func (s *PostgresStore) queryVacancy(ctx context.Context, q sq.SelectBuilder) ([]models.VacancyRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) queryAge(ctx context.Context, q sq.SelectBuilder) ([]models.AgeRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
