package ingest

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"akiya_collector/grid"
)

var (
	numeralRegex = regexp.MustCompile(`[-+]?\d*\.?\d+`)

	placeholders = map[string]bool{
		"":    true,
		"-":   true,
		"...": true,
		"…":   true,
		"－":   true,
		"―":   true,
		"***": true,
		"x":   true,
		"X":   true,
	}

	separatorReplacer = strings.NewReplacer(",", "", "，", "")

	maxCount = decimal.NewFromInt(math.MaxInt)
)

// ToCount reads a spreadsheet cell as a non-negative integer count.
// Blanks, placeholders, and text without a numeral all read as 0.
// The first numeral in the text wins and is rounded half-to-even. Numerals
// too large for an int also read as 0.
func ToCount(v any) int {
	s := strings.TrimSpace(grid.CellText(v))
	if placeholders[s] {
		return 0
	}

	m := numeralRegex.FindString(separatorReplacer.Replace(s))
	if m == "" {
		return 0
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(m, "+"))
	if err != nil {
		return 0
	}

	d = d.RoundBank(0)
	if d.Sign() <= 0 || d.GreaterThan(maxCount) {
		return 0
	}
	return int(d.IntPart())
}
