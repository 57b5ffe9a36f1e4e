package logging

import "time"

// #region run-entry
// RunEntry is a single row in the decode_runs table: what one Predict call
// did, against which model, and how it ended.
type RunEntry struct {
	RunID      string
	ModelID    string
	Sessions   int
	RowsTotal  int
	RowsFailed int
	Status     string // "ok" | "partial" | "failed"
	Reason     string
	CreatedAt  time.Time
}

// Run statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// #endregion run-entry
