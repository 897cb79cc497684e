package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"akiya_collector/grid"
	"akiya_collector/models"
)

var errFakeConstraint = errors.New("fake: foreign key")

type fakeStore struct {
	regions   map[string]models.Region
	vacancy   map[string]models.VacancyRecord
	age       map[string]models.AgeRecord
	calls     []string
	failCodes map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		regions:   map[string]models.Region{},
		vacancy:   map[string]models.VacancyRecord{},
		age:       map[string]models.AgeRecord{},
		failCodes: map[string]bool{},
	}
}

func (f *fakeStore) UpsertRegion(_ context.Context, r models.Region) error {
	f.calls = append(f.calls, "region:"+r.Code)
	f.regions[r.Code] = r
	return nil
}

func (f *fakeStore) UpsertVacancyRecord(_ context.Context, rec models.VacancyRecord) error {
	f.calls = append(f.calls, "vacancy:"+rec.RegionCode)
	if f.failCodes[rec.RegionCode] {
		return errFakeConstraint
	}
	f.vacancy[rec.RegionCode] = rec
	return nil
}

func (f *fakeStore) UpsertAgeRecord(_ context.Context, rec models.AgeRecord) error {
	f.calls = append(f.calls, "age:"+rec.RegionCode)
	if f.failCodes[rec.RegionCode] {
		return errFakeConstraint
	}
	f.age[rec.RegionCode] = rec
	return nil
}

func (f *fakeStore) IsConstraintViolation(err error) bool {
	return errors.Is(err, errFakeConstraint)
}

func TestImporter_ImportVacancyTable(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, NewLocator("19"), 2023, zaptest.NewLogger(t))

	res, err := im.ImportVacancyTable(context.Background(), vacancyGrid())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Imported)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Skipped, 2)

	assert.Equal(t, models.VacancyRecord{
		RegionCode:     "19201",
		Year:           2023,
		TotalDwellings: 100000,
		TotalVacant:    15000,
		ForRent:        5000,
		ForSale:        2000,
		SecondaryUse:   3000,
		Other:          5000,
	}, store.vacancy["19201"])

	assert.Contains(t, store.regions, "19000")
	assert.Equal(t, "山梨県", store.regions["19000"].Name)
	assert.NotContains(t, store.regions, "19999")

	assert.Equal(t, []string{
		"region:19000", "vacancy:19000",
		"region:19201", "vacancy:19201",
		"region:19202", "vacancy:19202",
	}, store.calls)
}

func TestImporter_ImportVacancyTable_Discrepancies(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, NewLocator("19"), 2023, zaptest.NewLogger(t))

	res, err := im.ImportVacancyTable(context.Background(), vacancyGrid())
	require.NoError(t, err)

	require.Len(t, res.Discrepancies, 1)
	d := res.Discrepancies[0]
	assert.Equal(t, "19202", d.RegionCode)
	assert.Equal(t, 0, d.TotalVacant)
	assert.Equal(t, 12, d.CategorySum)
	assert.Equal(t, -12, d.Diff())
}

func TestImporter_ImportVacancyTable_FailuresAreReportedPerRegion(t *testing.T) {
	store := newFakeStore()
	store.failCodes["19201"] = true
	im := NewImporter(store, NewLocator("19"), 2023, zaptest.NewLogger(t))

	res, err := im.ImportVacancyTable(context.Background(), vacancyGrid())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "19201", res.Failures[0].RegionCode)
	assert.True(t, res.Failures[0].Constraint)
	assert.ErrorIs(t, res.Failures[0].Err, errFakeConstraint)
	assert.Contains(t, store.vacancy, "19202")
}

func TestImporter_ImportVacancyTable_NoHeaderWritesNothing(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, NewLocator("19"), 2023, zaptest.NewLogger(t))

	res, err := im.ImportVacancyTable(context.Background(), grid.Grid{{"19201_甲府市", "1"}})
	assert.ErrorIs(t, err, ErrHeaderNotFound)
	assert.True(t, IsFatal(err))
	assert.Nil(t, res)
	assert.Empty(t, store.calls)
}

func TestImporter_ImportVacancyTable_CancelledContext(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, NewLocator("19"), 2023, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := im.ImportVacancyTable(ctx, vacancyGrid())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Imported)
	assert.Empty(t, store.calls)
}

func TestImporter_ImportAgeTable(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, NewLocator("19"), 2023, zaptest.NewLogger(t))

	res, err := im.ImportAgeTable(context.Background(), ageGrid())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Len(t, res.Skipped, 2)
	assert.Equal(t, 8000, store.age["19201"].Pre1970)
	assert.Equal(t, 3100, store.age["19202"].Pre1970)
	assert.Equal(t, []string{"region:19201", "age:19201", "region:19202", "age:19202"}, store.calls)
}

func TestImporter_ImportAgeTable_ValueColumnOption(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store, NewLocator("19"), 2023, nil, WithAgeValueColumn(2))

	res, err := im.ImportAgeTable(context.Background(), grid.Grid{{"19201_甲府市", "1970年以前", "77", "1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 77, store.age["19201"].Pre1970)
}

func TestImporter_ImportAgeTable_NoData(t *testing.T) {
	im := NewImporter(newFakeStore(), NewLocator("19"), 2023, zaptest.NewLogger(t))

	_, err := im.ImportAgeTable(context.Background(), grid.Grid{{"地域"}})
	assert.ErrorIs(t, err, ErrDataStartNotFound)
	assert.True(t, IsFatal(err))
}
