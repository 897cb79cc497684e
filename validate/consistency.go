// Package validate compares stored figures against each other. It reports
// mismatches and never changes or rejects data.
package validate

import (
	"context"
	"fmt"
	"io"
	"strings"

	"akiya_collector/models"
)

// Reader is the read side of the store the checks need.
type Reader interface {
	VacancyRecordsByYear(ctx context.Context, year int) ([]models.VacancyRecord, error)
	AgeRecordsByYear(ctx context.Context, year int) ([]models.AgeRecord, error)
}

// Comparison sets a prefecture-wide figure against the sum of its municipalities.
type Comparison struct {
	Prefecture     int
	MunicipalSum   int
	Municipalities int
}

func (c Comparison) Diff() int { return c.Prefecture - c.MunicipalSum }

// RegionGap is a per-region difference between two figures that should agree.
type RegionGap struct {
	RegionCode string
	Expected   int
	Actual     int
}

func (g RegionGap) Diff() int { return g.Expected - g.Actual }

type Report struct {
	PrefectureCode string
	Year           int
	// TotalVacant is nil when the prefecture row has no vacancy record.
	TotalVacant *Comparison
	// Pre1970 is nil when the prefecture row has no age record.
	Pre1970 *Comparison
	// CategoryGaps: TotalVacant (Expected) against the category sum (Actual).
	CategoryGaps []RegionGap
	// AgeGaps: TotalDwellings (Expected) against the age bracket total (Actual).
	AgeGaps []RegionGap
}

// Clean reports whether every comparison agreed.
func (r *Report) Clean() bool {
	if r.TotalVacant != nil && r.TotalVacant.Diff() != 0 {
		return false
	}
	if r.Pre1970 != nil && r.Pre1970.Diff() != 0 {
		return false
	}
	return len(r.CategoryGaps) == 0 && len(r.AgeGaps) == 0
}

// Check runs every comparison for one prefecture and survey year.
// prefectureCode is the 5-digit code of the prefecture row, e.g. "19000".
func Check(ctx context.Context, store Reader, prefectureCode string, year int) (*Report, error) {
	vacancy, err := store.VacancyRecordsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("read vacancy records: %w", err)
	}
	age, err := store.AgeRecordsByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("read age records: %w", err)
	}

	report := &Report{PrefectureCode: prefectureCode, Year: year}
	prefix := prefectureCode[:min(2, len(prefectureCode))]
	isMunicipality := func(code string) bool {
		return code != prefectureCode && strings.HasPrefix(code, prefix)
	}

	var vacantCmp Comparison
	var havePrefVacancy bool
	dwellings := make(map[string]int, len(vacancy))
	for _, rec := range vacancy {
		dwellings[rec.RegionCode] = rec.TotalDwellings
		if d := rec.Discrepancy(); d != 0 {
			report.CategoryGaps = append(report.CategoryGaps, RegionGap{
				RegionCode: rec.RegionCode,
				Expected:   rec.TotalVacant,
				Actual:     rec.CategorySum(),
			})
		}
		switch {
		case rec.RegionCode == prefectureCode:
			vacantCmp.Prefecture = rec.TotalVacant
			havePrefVacancy = true
		case isMunicipality(rec.RegionCode):
			vacantCmp.MunicipalSum += rec.TotalVacant
			vacantCmp.Municipalities++
		}
	}
	if havePrefVacancy {
		report.TotalVacant = &vacantCmp
	}

	var ageCmp Comparison
	var havePrefAge bool
	for _, rec := range age {
		if total, ok := dwellings[rec.RegionCode]; ok && total != rec.Total() {
			report.AgeGaps = append(report.AgeGaps, RegionGap{
				RegionCode: rec.RegionCode,
				Expected:   total,
				Actual:     rec.Total(),
			})
		}
		switch {
		case rec.RegionCode == prefectureCode:
			ageCmp.Prefecture = rec.Pre1970
			havePrefAge = true
		case isMunicipality(rec.RegionCode):
			ageCmp.MunicipalSum += rec.Pre1970
			ageCmp.Municipalities++
		}
	}
	if havePrefAge {
		report.Pre1970 = &ageCmp
	}

	return report, nil
}

// Write prints the report in a human-readable form.
func (r *Report) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Consistency report for %s, %d\n", r.PrefectureCode, r.Year)

	writeCmp := func(label string, c *Comparison) {
		if c == nil {
			fmt.Fprintf(&b, "  %s: no prefecture record\n", label)
			return
		}
		fmt.Fprintf(&b, "  %s: prefecture %d, sum of %d municipalities %d, diff %+d\n",
			label, c.Prefecture, c.Municipalities, c.MunicipalSum, c.Diff())
	}
	writeCmp("total vacant", r.TotalVacant)
	writeCmp("built before 1970", r.Pre1970)

	fmt.Fprintf(&b, "  category sum mismatches: %d\n", len(r.CategoryGaps))
	for _, g := range r.CategoryGaps {
		fmt.Fprintf(&b, "    %s: total vacant %d, categories %d, diff %+d\n", g.RegionCode, g.Expected, g.Actual, g.Diff())
	}
	fmt.Fprintf(&b, "  construction period mismatches: %d\n", len(r.AgeGaps))
	for _, g := range r.AgeGaps {
		fmt.Fprintf(&b, "    %s: dwellings %d, by period %d, diff %+d\n", g.RegionCode, g.Expected, g.Actual, g.Diff())
	}

	_, err := io.WriteString(w, b.String())
	return err
}
