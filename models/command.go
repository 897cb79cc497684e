package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdCollectNow     CommandType = "collect_now"
	CmdCollectDataset CommandType = "collect_dataset"
	CmdPause          CommandType = "pause"
	CmdResume         CommandType = "resume"
)

// Command is a request queued for the running daemon.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Dataset string `json:"dataset,omitempty"`
}

// ParseCommandType accepts the queue names used on the command line.
func ParseCommandType(s string) (CommandType, bool) {
	switch t := CommandType(s); t {
	case CmdCollectNow, CmdCollectDataset, CmdPause, CmdResume:
		return t, true
	}
	return "", false
}
