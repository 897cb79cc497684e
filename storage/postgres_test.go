//go:build postgres

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akiya_collector/models"
)

func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	_, err = store.Pool().Exec(ctx, "TRUNCATE age_records, vacancy_records, regions")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore_Roundtrip(t *testing.T) {
	store := newPostgresTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "甲府市"}))
	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "別名"}))
	require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(2023)))
	require.NoError(t, store.UpsertAgeRecord(ctx, models.AgeRecord{RegionCode: "19201", Year: 2023, Pre1970: 8000}))

	regions, err := store.ListRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Region{{Code: "19201", Name: "甲府市"}}, regions)

	vac, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	assert.Equal(t, []models.VacancyRecord{kofuVacancy(2023)}, vac)

	age, err := store.AgeRecordsFor(ctx, "19201")
	require.NoError(t, err)
	require.Len(t, age, 1)
	assert.Equal(t, 8000, age[0].Pre1970)
}

func TestPostgresStore_ForeignKeyViolation(t *testing.T) {
	store := newPostgresTestStore(t)
	ctx := context.Background()

	err := store.UpsertVacancyRecord(ctx, kofuVacancy(2023))
	require.ErrorIs(t, err, ErrConstraintViolation)

	vac, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	assert.Empty(t, vac)
}
