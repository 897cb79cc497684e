package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ImportRun tracks one resolve-download-import pass over a dataset.
type ImportRun struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	DatasetID    string     `json:"dataset_id" db:"dataset_id"`
	SourceURL    string     `json:"source_url" db:"source_url"`
	FileHash     string     `json:"file_hash" db:"file_hash"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	RowsImported int        `json:"rows_imported" db:"rows_imported"`
	RowsSkipped  int        `json:"rows_skipped" db:"rows_skipped"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
}

// NewImportRun starts a run in the running state.
func NewImportRun(datasetID string) *ImportRun {
	return &ImportRun{
		ID:        uuid.New(),
		DatasetID: datasetID,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
}
