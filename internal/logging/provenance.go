// Package logging records decode-run provenance in the store's database,
// one row per Predict call, so operators can answer "what ran against
// which model and did it succeed" without scraping process logs.
package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-run
// LogRun writes a run entry to the decode_runs table.
func LogRun(db *sql.DB, entry RunEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decode_runs (run_id, model_id, sessions, rows_total, rows_failed, status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.ModelID,
		entry.Sessions,
		entry.RowsTotal,
		entry.RowsFailed,
		entry.Status,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log run: %w", err)
	}
	return nil
}

// #endregion log-run

// #region last-runs
// LastRuns returns the most recent decode runs, newest first.
func LastRuns(db *sql.DB, limit int) ([]RunEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, model_id, sessions, rows_total, rows_failed, status, reason, created_at
		 FROM decode_runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.ModelID, &e.Sessions, &e.RowsTotal, &e.RowsFailed, &e.Status, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion last-runs

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
