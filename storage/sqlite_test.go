package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akiya_collector/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func kofuVacancy(year int) models.VacancyRecord {
	return models.VacancyRecord{
		RegionCode:     "19201",
		Year:           year,
		TotalDwellings: 100000,
		TotalVacant:    15000,
		ForRent:        5000,
		ForSale:        2000,
		SecondaryUse:   3000,
		Other:          5000,
	}
}

func TestSQLiteStore_EmptyReads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	regions, err := store.ListRegions(ctx)
	require.NoError(t, err)
	assert.Empty(t, regions)
	assert.NotNil(t, regions)

	vac, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	assert.Empty(t, vac)

	age, err := store.AgeRecordsFor(ctx, "19201")
	require.NoError(t, err)
	assert.Empty(t, age)
}

func TestSQLiteStore_UpsertRegionKeepsFirstName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "甲府市"}))
	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "別名"}))
	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19000", Name: "山梨県"}))

	regions, err := store.ListRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Region{
		{Code: "19000", Name: "山梨県"},
		{Code: "19201", Name: "甲府市"},
	}, regions)
}

func TestSQLiteStore_UpsertVacancyReplacesAllFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "甲府市"}))
	require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(2023)))

	updated := models.VacancyRecord{RegionCode: "19201", Year: 2023, TotalDwellings: 1, TotalVacant: 2}
	require.NoError(t, store.UpsertVacancyRecord(ctx, updated))

	got, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, updated, got[0])
}

func TestSQLiteStore_UpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "甲府市"}))
		require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(2023)))
	}

	got, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	assert.Equal(t, []models.VacancyRecord{kofuVacancy(2023)}, got)
}

func TestSQLiteStore_RecordsOrderedByYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "甲府市"}))
	for _, year := range []int{2023, 2013, 2018} {
		require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(year)))
		require.NoError(t, store.UpsertAgeRecord(ctx, models.AgeRecord{RegionCode: "19201", Year: year, Pre1970: year}))
	}

	vac, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	require.Len(t, vac, 3)
	assert.Equal(t, []int{2013, 2018, 2023}, []int{vac[0].Year, vac[1].Year, vac[2].Year})

	age, err := store.AgeRecordsFor(ctx, "19201")
	require.NoError(t, err)
	require.Len(t, age, 3)
	assert.Equal(t, 2013, age[0].Pre1970)
	assert.Equal(t, 2023, age[2].Pre1970)
}

func TestSQLiteStore_RecordWithoutRegionIsRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpsertVacancyRecord(ctx, kofuVacancy(2023))
	require.ErrorIs(t, err, ErrConstraintViolation)
	assert.True(t, store.IsConstraintViolation(err))

	err = store.UpsertAgeRecord(ctx, models.AgeRecord{RegionCode: "19999", Year: 2023})
	require.ErrorIs(t, err, ErrConstraintViolation)

	vac, err := store.VacancyRecordsFor(ctx, "19201")
	require.NoError(t, err)
	assert.Empty(t, vac)
	regions, err := store.ListRegions(ctx)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestSQLiteStore_ByYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, r := range []models.Region{{Code: "19000", Name: "山梨県"}, {Code: "19201", Name: "甲府市"}} {
		require.NoError(t, store.UpsertRegion(ctx, r))
	}
	pref := kofuVacancy(2023)
	pref.RegionCode = "19000"
	require.NoError(t, store.UpsertVacancyRecord(ctx, pref))
	require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(2023)))
	require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(2018)))
	require.NoError(t, store.UpsertAgeRecord(ctx, models.AgeRecord{RegionCode: "19201", Year: 2023, Pre1970: 10}))

	vac, err := store.VacancyRecordsByYear(ctx, 2023)
	require.NoError(t, err)
	require.Len(t, vac, 2)
	assert.Equal(t, "19000", vac[0].RegionCode)
	assert.Equal(t, "19201", vac[1].RegionCode)

	age, err := store.AgeRecordsByYear(ctx, 2018)
	require.NoError(t, err)
	assert.Empty(t, age)
}

func TestSQLiteStore_RunRecorder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := models.NewImportRun("vacancy")
	require.NoError(t, store.CreateRun(ctx, run))
	require.NoError(t, store.Log(ctx, &run.ID, models.LogLevelInfo, "downloaded", "vacancy"))
	require.NoError(t, store.Log(ctx, &run.ID, models.LogLevelWarn, "row skipped", "vacancy"))
	require.NoError(t, store.Log(ctx, nil, models.LogLevelInfo, "unrelated", ""))

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.SourceURL = "https://example.test/file.xlsx"
	run.FileHash = "abc123"
	run.RowsImported = 28
	run.RowsSkipped = 3
	require.NoError(t, store.UpdateRun(ctx, run))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, "abc123", got.FileHash)
	assert.Equal(t, 28, got.RowsImported)
	assert.Equal(t, 3, got.RowsSkipped)
	require.NotNil(t, got.FinishedAt)

	logs, err := store.RunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "downloaded", logs[0].Message)
	assert.Equal(t, models.LogLevelWarn, logs[1].Level)
	assert.Equal(t, run.ID, logs[1].RunID)
}

func TestSQLiteStore_RecentRunsRejectsBadID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, dataset_id, source_url, file_hash, started_at, status,
			rows_imported, rows_skipped, errors_count)
		VALUES ('not-a-uuid', 'vacancy', '', '', ?, 'running', 0, 0, 0)`, time.Now())
	require.NoError(t, err)

	_, err = store.RecentRuns(ctx, 10)
	assert.ErrorContains(t, err, `run id "not-a-uuid"`)
}

func TestSQLiteStore_ResetAllData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRegion(ctx, models.Region{Code: "19201", Name: "甲府市"}))
	require.NoError(t, store.UpsertVacancyRecord(ctx, kofuVacancy(2023)))
	require.NoError(t, store.ResetAllData())

	regions, err := store.ListRegions(ctx)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestArchiveKey(t *testing.T) {
	assert.Equal(t, "workbooks/vacancy/ab12.xlsx", ArchiveKey("vacancy", "ab12", ".XLSX"))
	assert.Equal(t, "workbooks/age/ff.csv", ArchiveKey("age", "ff", "csv"))
	assert.Equal(t, "workbooks/age/ff.xlsx", ArchiveKey("age", "ff", ""))
}

func TestSQLiteStore_CommandQueue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.EnqueueCommand(ctx, models.CmdPause, models.CommandParams{})
	require.NoError(t, err)
	second, err := store.EnqueueCommand(ctx, models.CmdCollectDataset, models.CommandParams{Dataset: "vacancy"})
	require.NoError(t, err)

	cmds, err := store.PendingCommands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, first, cmds[0].ID)
	assert.Equal(t, models.CmdPause, cmds[0].Command)
	assert.Equal(t, models.CmdCollectDataset, cmds[1].Command)
	assert.JSONEq(t, `{"dataset":"vacancy"}`, string(cmds[1].Params))

	require.NoError(t, store.MarkCommandProcessed(ctx, first))
	cmds, err = store.PendingCommands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, second, cmds[0].ID)
}
