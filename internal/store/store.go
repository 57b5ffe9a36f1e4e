// Package store persists fitted models in SQLite: versioned transition
// mappings, an active-model pointer for the fit-once/predict-many
// lifecycle, and a log of decode runs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS model_versions (
	model_id    TEXT PRIMARY KEY,
	parent_id   TEXT,
	states_json TEXT NOT NULL,
	smoothing   REAL NOT NULL,
	observed    INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES model_versions(model_id)
);

CREATE TABLE IF NOT EXISTS model_transitions (
	model_id    TEXT NOT NULL,
	from_label  TEXT NOT NULL,
	to_label    TEXT NOT NULL,
	prob        REAL NOT NULL,
	PRIMARY KEY (model_id, from_label, to_label),
	FOREIGN KEY (model_id) REFERENCES model_versions(model_id)
);

CREATE TABLE IF NOT EXISTS active_model (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	model_id      TEXT NOT NULL,
	FOREIGN KEY (model_id) REFERENCES model_versions(model_id)
);

CREATE TABLE IF NOT EXISTS decode_runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	model_id      TEXT NOT NULL,
	sessions      INTEGER NOT NULL,
	rows_total    INTEGER NOT NULL,
	rows_failed   INTEGER NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (model_id) REFERENCES model_versions(model_id)
);
`

// #endregion schema

// ErrNoActiveModel is returned when no model has been activated yet.
var ErrNoActiveModel = errors.New("no active model")

// #region store-struct
// Store manages versioned models in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing database handle (e.g. an in-memory one
// in tests) and runs migrations on it.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region save-model
// SaveModel inserts a model version with its full transition mapping and
// flips the active pointer to it, atomically. A missing ModelID is filled
// with a fresh UUID; the stored record is returned.
func (s *Store) SaveModel(rec ModelRecord) (ModelRecord, error) {
	if rec.ModelID == "" {
		rec.ModelID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	statesJSON, err := json.Marshal(rec.States)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("marshal states: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return ModelRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO model_versions (model_id, parent_id, states_json, smoothing, observed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ModelID, parentPtr, string(statesJSON), rec.Smoothing, rec.Observed,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("insert version: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO model_transitions (model_id, from_label, to_label, prob) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("prepare transitions: %w", err)
	}
	defer stmt.Close()
	for from, row := range rec.Probs {
		for to, p := range row {
			if _, err := stmt.Exec(rec.ModelID, from, to, p); err != nil {
				return ModelRecord{}, fmt.Errorf("insert transition %s->%s: %w", from, to, err)
			}
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_model (id, model_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id`,
		rec.ModelID,
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ModelRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save-model

// #region get-active
// GetActive reads the active model, ErrNoActiveModel if none was saved yet.
func (s *Store) GetActive() (ModelRecord, error) {
	var modelID string
	err := s.db.QueryRow(`SELECT model_id FROM active_model WHERE id = 1`).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelRecord{}, ErrNoActiveModel
	}
	if err != nil {
		return ModelRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetModel(modelID)
}

// #endregion get-active

// #region get-model
// GetModel retrieves a model version with its full transition mapping.
func (s *Store) GetModel(id string) (ModelRecord, error) {
	rec, err := s.scanVersion(id)
	if err != nil {
		return ModelRecord{}, err
	}

	rows, err := s.db.Query(
		`SELECT from_label, to_label, prob FROM model_transitions WHERE model_id = ?`, id,
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("load transitions: %w", err)
	}
	defer rows.Close()

	rec.Probs = make(map[string]map[string]float64)
	for rows.Next() {
		var from, to string
		var p float64
		if err := rows.Scan(&from, &to, &p); err != nil {
			return ModelRecord{}, fmt.Errorf("scan transition: %w", err)
		}
		row := rec.Probs[from]
		if row == nil {
			row = make(map[string]float64)
			rec.Probs[from] = row
		}
		row[to] = p
	}
	return rec, rows.Err()
}

func (s *Store) scanVersion(id string) (ModelRecord, error) {
	var rec ModelRecord
	var parentID sql.NullString
	var statesJSON string
	var createdStr string

	err := s.db.QueryRow(
		`SELECT model_id, parent_id, states_json, smoothing, observed, created_at
		 FROM model_versions WHERE model_id = ?`, id,
	).Scan(&rec.ModelID, &parentID, &statesJSON, &rec.Smoothing, &rec.Observed, &createdStr)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("get model %s: %w", id, err)
	}

	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(statesJSON), &rec.States); err != nil {
		return ModelRecord{}, fmt.Errorf("unmarshal states: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion get-model

// #region activate
// Activate points the active pointer at an existing model, e.g. to roll
// back to an earlier version after a bad fit.
func (s *Store) Activate(modelID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM model_versions WHERE model_id = ?`, modelID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check model: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("model %s not found", modelID)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_model (id, model_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id`,
		modelID,
	)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// #endregion activate

// #region list-models
// ListModels returns the most recent model versions, newest first. The
// transition mappings are left nil; load a single model with GetModel.
func (s *Store) ListModels(limit int) ([]ModelRecord, error) {
	rows, err := s.db.Query(
		`SELECT model_id, parent_id, states_json, smoothing, observed, created_at
		 FROM model_versions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var records []ModelRecord
	for rows.Next() {
		var rec ModelRecord
		var parentID sql.NullString
		var statesJSON string
		var createdStr string

		if err := rows.Scan(&rec.ModelID, &parentID, &statesJSON, &rec.Smoothing, &rec.Observed, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			rec.ParentID = parentID.String
		}
		if err := json.Unmarshal([]byte(statesJSON), &rec.States); err != nil {
			return nil, fmt.Errorf("unmarshal states: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-models
