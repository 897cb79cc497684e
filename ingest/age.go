package ingest

import (
	"regexp"
	"strings"

	"akiya_collector/grid"
	"akiya_collector/models"
)

// DefaultAgeValueColumn is column D, which holds the dwelling count in the
// construction-period table.
const DefaultAgeValueColumn = 3

const preCutoffMarker = "以前"

var yearLabelRegex = regexp.MustCompile(`\d{4}\s*年`)

// AgeRow pairs a region with its construction-period record.
type AgeRow struct {
	Region models.Region
	Record models.AgeRecord
}

// AgeExtraction is the result of reading a construction-period sheet.
type AgeExtraction struct {
	DataStart int
	Rows      []AgeRow
	Skipped   []SkippedRow
}

// ExtractAge walks a sheet laid out as one row per region and period, and
// folds the rows into one record per region.
func ExtractAge(g grid.Grid, loc Locator, year, valueColumn int) (*AgeExtraction, error) {
	start, ok := loc.FindDataStart(g)
	if !ok {
		return nil, ErrDataStartNotFound
	}

	out := &AgeExtraction{DataStart: start}
	acc := make(map[string]*AgeRow)
	var order []string

	for i := start; i < len(g); i++ {
		row := g[i]

		tokenIdx, region, ok := loc.regionCell(row)
		if !ok {
			out.Skipped = append(out.Skipped, SkippedRow{Row: i, Reason: SkipNoRegion})
			continue
		}
		if loc.Excluded(region.Name) {
			out.Skipped = append(out.Skipped, SkippedRow{Row: i, Reason: SkipExcluded, Region: region.Code})
			continue
		}

		label, ok := ageLabel(row, tokenIdx)
		if !ok {
			out.Skipped = append(out.Skipped, SkippedRow{Row: i, Reason: SkipNoAgeYear, Region: region.Code})
			continue
		}

		entry, seen := acc[region.Code]
		if !seen {
			entry = &AgeRow{
				Region: region,
				Record: models.AgeRecord{RegionCode: region.Code, Year: year},
			}
			acc[region.Code] = entry
			order = append(order, region.Code)
		}

		if b, ok := BracketFor(label); ok {
			entry.Record.Set(b, ToCount(grid.Cell(row, valueColumn)))
		}
	}

	out.Rows = make([]AgeRow, 0, len(order))
	for _, code := range order {
		out.Rows = append(out.Rows, *acc[code])
	}
	return out, nil
}

// BracketFor maps a free-text period label to its bracket. Labels are checked
// in a fixed order so the first matching year wins.
func BracketFor(label string) (models.AgeBracket, bool) {
	switch {
	case strings.Contains(label, "1970") && strings.Contains(label, preCutoffMarker):
		return models.BracketPre1970, true
	case strings.Contains(label, "1971"):
		return models.Bracket1971to1980, true
	case strings.Contains(label, "1981"):
		return models.Bracket1981to1990, true
	case strings.Contains(label, "1991"):
		return models.Bracket1991to2000, true
	case strings.Contains(label, "2001"):
		return models.Bracket2001to2010, true
	case strings.Contains(label, "2011"):
		return models.Bracket2011to2020, true
	case strings.Contains(label, "2021"), strings.Contains(label, "2023"):
		return models.Bracket2021to2023, true
	}
	return 0, false
}

func ageLabel(row []any, skip int) (string, bool) {
	for i, v := range row {
		if i == skip {
			continue
		}
		s := grid.CellText(v)
		if strings.Contains(s, preCutoffMarker) || yearLabelRegex.MatchString(s) {
			return s, true
		}
	}
	return "", false
}
