package grid

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads Office Open XML workbooks.
type XLSXSource struct{}

func (XLSXSource) LoadGrid(path string, sheet Sheet) (Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name := sheet.Name
	if name == "" {
		sheets := f.GetSheetList()
		if sheet.Index < 0 || sheet.Index >= len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range (%d sheets)", sheet.Index, len(sheets))
		}
		name = sheets[sheet.Index]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}

	return fromStrings(rows), nil
}

func fromStrings(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			if v == "" {
				continue
			}
			cells[j] = v
		}
		g[i] = cells
	}
	return g
}
