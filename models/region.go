package models

// Region is an administrative subdivision keyed by its 5-digit code.
type Region struct {
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}
