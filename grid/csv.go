package grid

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// CSVSource reads comma-separated exports. Sheet selection is ignored.
// Encoding "shift_jis" decodes legacy government CSVs; anything else is read as UTF-8.
type CSVSource struct {
	Encoding string
}

func (s CSVSource) LoadGrid(path string, _ Sheet) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return s.Read(f)
}

// Read parses CSV from r.
func (s CSVSource) Read(r io.Reader) (Grid, error) {
	switch strings.ToLower(strings.ReplaceAll(s.Encoding, "-", "_")) {
	case "shift_jis", "sjis", "cp932":
		r = transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	return fromStrings(records), nil
}
