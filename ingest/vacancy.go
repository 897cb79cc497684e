package ingest

import (
	"akiya_collector/grid"
	"akiya_collector/models"
)

// VacancyRow pairs a region with its vacancy record.
type VacancyRow struct {
	Region models.Region
	Record models.VacancyRecord
}

// VacancyExtraction is the result of reading a vacant-dwellings-by-type sheet.
type VacancyExtraction struct {
	HeaderRow int
	Rows      []VacancyRow
	Skipped   []SkippedRow
	// MissingColumns lists prefixes with no matching header; they read as zero.
	MissingColumns []string
}

type vacancyColumns struct {
	total, vacant, rent, sale, secondary, other *Column
}

// ExtractVacancy reads one record per region from a sheet whose header row
// carries "<code>_<label>" column names. Row numbers in Skipped are grid indices.
func ExtractVacancy(g grid.Grid, loc Locator, year int) (*VacancyExtraction, error) {
	headerIdx, ok := loc.FindHeaderRow(g)
	if !ok {
		return nil, ErrHeaderNotFound
	}

	table := grid.TableBelow(g, headerIdx)
	out := &VacancyExtraction{HeaderRow: headerIdx}

	resolve := func(prefix string) *Column {
		col, ok := MatchColumn(table.Headers, prefix)
		if !ok {
			out.MissingColumns = append(out.MissingColumns, prefix)
			return nil
		}
		return &col
	}
	cols := vacancyColumns{
		total:     resolve(PrefixTotalDwellings),
		vacant:    resolve(PrefixTotalVacant),
		rent:      resolve(PrefixForRent),
		sale:      resolve(PrefixForSale),
		secondary: resolve(PrefixSecondaryUse),
		other:     resolve(PrefixOther),
	}

	for i, row := range table.Rows {
		rowNum := headerIdx + 1 + i

		region, ok := loc.RegionToken(row)
		if !ok {
			out.Skipped = append(out.Skipped, SkippedRow{Row: rowNum, Reason: SkipNoRegion})
			continue
		}
		if loc.Excluded(region.Name) {
			out.Skipped = append(out.Skipped, SkippedRow{Row: rowNum, Reason: SkipExcluded, Region: region.Code})
			continue
		}

		out.Rows = append(out.Rows, VacancyRow{
			Region: region,
			Record: models.VacancyRecord{
				RegionCode:     region.Code,
				Year:           year,
				TotalDwellings: countAt(row, cols.total),
				TotalVacant:    countAt(row, cols.vacant),
				ForRent:        countAt(row, cols.rent),
				ForSale:        countAt(row, cols.sale),
				SecondaryUse:   countAt(row, cols.secondary),
				Other:          countAt(row, cols.other),
			},
		})
	}

	return out, nil
}

func countAt(row []any, col *Column) int {
	if col == nil {
		return 0
	}
	return ToCount(grid.Cell(row, col.Index))
}
