package ingest

import "errors"

var (
	// ErrHeaderNotFound means no row of the sheet carries the expected column codes.
	ErrHeaderNotFound = errors.New("header row not found")
	// ErrDataStartNotFound means no row of the sheet carries a region token.
	ErrDataStartNotFound = errors.New("data start row not found")
)

// SkipReason says why a data row produced no record.
type SkipReason string

const (
	SkipNoRegion  SkipReason = "no_region_token"
	SkipExcluded  SkipReason = "excluded_region"
	SkipNoAgeYear SkipReason = "no_age_label"
)

// SkippedRow is a data row that was left out of an extraction.
type SkippedRow struct {
	Row    int
	Reason SkipReason
	Region string
}
