package ingest

import "strings"

// Column prefixes used by the vacant-dwellings-by-type table.
const (
	PrefixTotalDwellings = "0"
	PrefixTotalVacant    = "22"
	PrefixOther          = "221"
	PrefixForRent        = "222"
	PrefixForSale        = "223"
	PrefixSecondaryUse   = "224"
)

// Column is a resolved header position.
type Column struct {
	Index int
	Label string
}

// MatchColumn returns the first header that starts with "<prefix>_".
// The underscore anchors the code, so "22" does not match "221_...".
func MatchColumn(headers []string, prefix string) (Column, bool) {
	want := prefix + regionSeparator
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if strings.HasPrefix(h, want) {
			return Column{Index: i, Label: h}, true
		}
	}
	return Column{}, false
}
