// Package grid loads worksheet exports as raw two-dimensional cell grids.
//
// Cells keep whatever the reader produced (usually strings, nil for blanks).
// No type coercion happens here; callers decide how to read a cell.
package grid

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Grid is a sheet as rows of untyped cells. Rows may differ in length.
type Grid [][]any

// Sheet selects a worksheet by name, or by zero-based index when Name is empty.
type Sheet struct {
	Name  string
	Index int
}

func (s Sheet) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d", s.Index)
}

// Source loads one sheet of a file into a Grid.
type Source interface {
	LoadGrid(path string, sheet Sheet) (Grid, error)
}

// Load picks a Source by file extension.
func Load(path string, sheet Sheet) (Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return XLSXSource{}.LoadGrid(path, sheet)
	case ".csv":
		return CSVSource{}.LoadGrid(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// CellText renders a cell as text. Blank cells render as "".
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return CellText(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// RowText joins the text of every cell in a row with single spaces.
func RowText(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = CellText(v)
	}
	return strings.Join(parts, " ")
}

// Table is the part of a grid below a header row, with the header labels.
type Table struct {
	Headers []string
	Rows    [][]any
}

// TableBelow uses row headerIdx as labels and every later row as data.
func TableBelow(g Grid, headerIdx int) Table {
	if headerIdx < 0 || headerIdx >= len(g) {
		return Table{}
	}
	header := g[headerIdx]
	labels := make([]string, len(header))
	for i, v := range header {
		labels[i] = strings.TrimSpace(CellText(v))
	}
	return Table{Headers: labels, Rows: g[headerIdx+1:]}
}

// Cell returns row[i], or nil when the row is too short.
func Cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}
