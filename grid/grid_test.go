package grid

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
)

func TestCellText(t *testing.T) {
	assert.Equal(t, "", CellText(nil))
	assert.Equal(t, "abc", CellText("abc"))
	assert.Equal(t, "1234.5", CellText(1234.5))
	assert.Equal(t, "42", CellText(42))
	assert.Equal(t, "7", CellText(int64(7)))
}

func TestTableBelow(t *testing.T) {
	g := Grid{
		{"title"},
		{" 0_総数 ", "22_空き家総数"},
		{"19201_甲府市", "100"},
		{"19202_富士吉田市", "200"},
	}

	tbl := TableBelow(g, 1)
	assert.Equal(t, []string{"0_総数", "22_空き家総数"}, tbl.Headers)
	assert.Len(t, tbl.Rows, 2)
	assert.Equal(t, "19202_富士吉田市", tbl.Rows[1][0])

	assert.Empty(t, TableBelow(g, 10).Headers)
}

func TestCell_ShortRow(t *testing.T) {
	row := []any{"a"}
	assert.Equal(t, "a", Cell(row, 0))
	assert.Nil(t, Cell(row, 3))
	assert.Nil(t, Cell(row, -1))
}

func TestXLSXSource_LoadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"表1-2 住宅の種類"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"地域", "0_総数", "22_空き家総数"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"19201_甲府市", 100000, 15000}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	g, err := XLSXSource{}.LoadGrid(path, Sheet{})
	require.NoError(t, err)

	require.Len(t, g, 4)
	assert.Equal(t, "表1-2 住宅の種類", g[0][0])
	assert.Empty(t, g[1])
	assert.Equal(t, "0_総数", g[2][1])
	assert.Equal(t, "19201_甲府市", g[3][0])
	assert.Equal(t, "100000", g[3][1])

	byName, err := Load(path, Sheet{Name: "Sheet1"})
	require.NoError(t, err)
	assert.Equal(t, g, byName)
}

func TestXLSXSource_SheetOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := XLSXSource{}.LoadGrid(path, Sheet{Index: 5})
	assert.Error(t, err)
}

func TestCSVSource_ShiftJIS(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().String("19201_甲府市,\"1,234\",\n")
	require.NoError(t, err)

	g, err := CSVSource{Encoding: "Shift_JIS"}.Read(bytes.NewBufferString(sjis))
	require.NoError(t, err)

	require.Len(t, g, 1)
	assert.Equal(t, "19201_甲府市", g[0][0])
	assert.Equal(t, "1,234", g[0][1])
	assert.Nil(t, g[0][2])
}

func TestLoad_CSVWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeff地域,0_総数\n19201_甲府市,10\n"), 0o644))

	g, err := Load(path, Sheet{})
	require.NoError(t, err)
	assert.Equal(t, "地域", g[0][0])
	assert.Equal(t, "10", g[1][1])
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("table.pdf", Sheet{})
	assert.Error(t, err)
}
