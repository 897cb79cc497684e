package ingest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 0},
		{"empty", "", 0},
		{"dash placeholder", "-", 0},
		{"full-width dash", "－", 0},
		{"ellipsis", "...", 0},
		{"no numeral", "秘匿", 0},
		{"plain", "12345", 12345},
		{"comma separated", "1,234", 1234},
		{"full-width comma", "1，234", 1234},
		{"surrounding spaces", "  42 ", 42},
		{"annotated", "約1,200戸", 1200},
		{"decimal rounds down", "12.4", 12},
		{"half rounds to even below", "12.5", 12},
		{"half rounds to even above", "13.5", 14},
		{"leading plus", "+7", 7},
		{"negative clamps", "-30", 0},
		{"float cell", float64(880), 880},
		{"float fraction", 2.5, 2},
		{"int cell", 15, 15},
		{"NaN", math.NaN(), 0},
		{"beyond int64", "99999999999999999999", 0},
		{"beyond uint64", "18446744073709551617", 0},
		{"huge float cell", 1e30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCount(tt.in))
		})
	}
}

func TestToCount_NeverNegative(t *testing.T) {
	for _, in := range []any{"-1", "-0.6", "▲500", "-1,000", -3.0} {
		assert.GreaterOrEqual(t, ToCount(in), 0, "input %v", in)
	}
}

func TestToCount_FirstNumeralWins(t *testing.T) {
	assert.Equal(t, 300, ToCount("300 (2018: 250)"))
}
