package ingest

import (
	"fmt"
	"strings"

	"akiya_collector/grid"
	"akiya_collector/models"
)

const (
	regionSeparator = "_"
	regionCodeWidth = 5
)

var (
	defaultTotalMarkers    = []string{"0_", "22_"}
	defaultCategoryMarkers = []string{"221_", "222_"}
	defaultExclusions      = []string{"県外", "不詳", "その他"}
)

// Locator finds header rows and region tokens in loosely laid out sheets.
type Locator struct {
	// PrefecturePrefix is the two-digit code every region token starts with.
	PrefecturePrefix string
	TotalMarkers     []string
	CategoryMarkers  []string
	// Exclusions are substrings marking aggregate or catch-all rows.
	Exclusions []string
}

// NewLocator returns a Locator for the given prefecture with the standard markers.
func NewLocator(prefecturePrefix string) Locator {
	return Locator{
		PrefecturePrefix: prefecturePrefix,
		TotalMarkers:     defaultTotalMarkers,
		CategoryMarkers:  defaultCategoryMarkers,
		Exclusions:       defaultExclusions,
	}
}

// FindHeaderRow returns the index of the first row that names both a total
// column and a vacancy category column.
func (l Locator) FindHeaderRow(g grid.Grid) (int, bool) {
	for i, row := range g {
		text := grid.RowText(row)
		if containsAny(text, l.TotalMarkers) && containsAny(text, l.CategoryMarkers) {
			return i, true
		}
	}
	return 0, false
}

// RegionToken returns the region named by the first "<code>_<name>" cell of
// the row whose code starts with the prefecture prefix.
func (l Locator) RegionToken(row []any) (models.Region, bool) {
	_, region, ok := l.regionCell(row)
	return region, ok
}

func (l Locator) regionCell(row []any) (int, models.Region, bool) {
	for i, v := range row {
		s := strings.TrimSpace(grid.CellText(v))
		if !strings.Contains(s, regionSeparator) || !strings.HasPrefix(s, l.PrefecturePrefix) {
			continue
		}
		code, name, _ := strings.Cut(s, regionSeparator)
		return i, models.Region{
			Code: padCode(strings.TrimSpace(code)),
			Name: strings.TrimSpace(name),
		}, true
	}
	return 0, models.Region{}, false
}

// FindDataStart returns the first row holding a region token.
func (l Locator) FindDataStart(g grid.Grid) (int, bool) {
	for i, row := range g {
		if _, ok := l.RegionToken(row); ok {
			return i, true
		}
	}
	return 0, false
}

// Excluded reports whether a region name denotes an aggregate or unknown bucket.
func (l Locator) Excluded(name string) bool {
	return containsAny(name, l.Exclusions)
}

// PrefectureCode is the 5-digit code of the prefecture-wide row.
func (l Locator) PrefectureCode() string {
	return fmt.Sprintf("%s%0*d", l.PrefecturePrefix, regionCodeWidth-len(l.PrefecturePrefix), 0)
}

func padCode(code string) string {
	if len(code) < regionCodeWidth {
		code = strings.Repeat("0", regionCodeWidth-len(code)) + code
	}
	return code[:regionCodeWidth]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
