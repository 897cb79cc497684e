package models

// VacancyRecord holds dwelling and vacancy counts for one region and survey year.
// The four categories are expected to add up to TotalVacant, but published
// tables round each figure independently so small gaps are normal.
type VacancyRecord struct {
	RegionCode     string `json:"region_code" db:"region_code"`
	Year           int    `json:"year" db:"year"`
	TotalDwellings int    `json:"total_dwellings" db:"total_dwellings"`
	TotalVacant    int    `json:"total_vacant" db:"total_vacant"`
	ForRent        int    `json:"for_rent" db:"for_rent"`
	ForSale        int    `json:"for_sale" db:"for_sale"`
	SecondaryUse   int    `json:"secondary_use" db:"secondary_use"`
	Other          int    `json:"other" db:"other"`
}

// CategorySum adds up the four vacancy categories.
func (r *VacancyRecord) CategorySum() int {
	return r.ForRent + r.ForSale + r.SecondaryUse + r.Other
}

// Discrepancy is TotalVacant minus the category sum.
func (r *VacancyRecord) Discrepancy() int {
	return r.TotalVacant - r.CategorySum()
}
