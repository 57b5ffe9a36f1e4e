package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/minodes/hmm-filter/internal/transition"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fittedRecord(t *testing.T, modelID, parentID string) ModelRecord {
	t.Helper()
	obs := []transition.Observation{
		{SessionID: "a", Timestamp: 1, Label: "2:2"},
		{SessionID: "a", Timestamp: 2, Label: "2:2"},
		{SessionID: "a", Timestamp: 3, Label: "2:3"},
		{SessionID: "b", Timestamp: 1, Label: "2:3"},
		{SessionID: "b", Timestamp: 2, Label: "3:3"},
	}
	m, err := transition.Estimate(obs, transition.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	rec := RecordFromMatrix(modelID, parentID, m)
	return rec
}

func TestSaveModelAndGetActive(t *testing.T) {
	s := tempStore(t)

	saved, err := s.SaveModel(fittedRecord(t, "m1", ""))
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if saved.ModelID != "m1" {
		t.Fatalf("expected m1, got %s", saved.ModelID)
	}

	got, err := s.GetActive()
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if got.ModelID != "m1" || got.ParentID != "" {
		t.Fatalf("unexpected active record: %+v", got)
	}
	if !reflect.DeepEqual(got.Probs, saved.Probs) {
		t.Errorf("transition mapping did not round-trip:\n got %v\nwant %v", got.Probs, saved.Probs)
	}
	if !reflect.DeepEqual(got.States, saved.States) {
		t.Errorf("states did not round-trip: got %v want %v", got.States, saved.States)
	}
	if got.Observed != saved.Observed || got.Smoothing != saved.Smoothing {
		t.Errorf("metadata mismatch: %+v", got)
	}

	// The reloaded record rebuilds a decodable matrix without refitting.
	m, err := got.Matrix()
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if !reflect.DeepEqual(m.Probs(), saved.Probs) {
		t.Errorf("rebuilt matrix mapping mismatch")
	}
	if !m.Has("3:3") {
		t.Errorf("terminal-only state lost on reload")
	}
}

func TestSaveModelGeneratesID(t *testing.T) {
	s := tempStore(t)

	rec := fittedRecord(t, "", "")
	saved, err := s.SaveModel(rec)
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if saved.ModelID == "" {
		t.Fatal("expected generated model id")
	}
}

func TestActivateRollsBack(t *testing.T) {
	s := tempStore(t)

	m1, err := s.SaveModel(fittedRecord(t, "m1", ""))
	if err != nil {
		t.Fatalf("SaveModel m1: %v", err)
	}
	if _, err := s.SaveModel(fittedRecord(t, "m2", m1.ModelID)); err != nil {
		t.Fatalf("SaveModel m2: %v", err)
	}

	cur, _ := s.GetActive()
	if cur.ModelID != "m2" {
		t.Fatalf("expected m2 active, got %s", cur.ModelID)
	}
	if cur.ParentID != "m1" {
		t.Fatalf("expected parent m1, got %q", cur.ParentID)
	}

	if err := s.Activate("m1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	cur, _ = s.GetActive()
	if cur.ModelID != "m1" {
		t.Fatalf("expected m1 after rollback, got %s", cur.ModelID)
	}
}

func TestActivateNonExistent(t *testing.T) {
	s := tempStore(t)
	s.SaveModel(fittedRecord(t, "m1", ""))

	if err := s.Activate("nonexistent-id"); err == nil {
		t.Fatal("expected error for non-existent model")
	}
}

func TestGetActiveNoModels(t *testing.T) {
	s := tempStore(t)

	_, err := s.GetActive()
	if !errors.Is(err, ErrNoActiveModel) {
		t.Fatalf("expected ErrNoActiveModel, got %v", err)
	}
}

func TestGetModelNotFound(t *testing.T) {
	s := tempStore(t)
	s.SaveModel(fittedRecord(t, "m1", ""))

	if _, err := s.GetModel("nonexistent-id"); err == nil {
		t.Fatal("expected error for nonexistent model")
	}
}

func TestListModels(t *testing.T) {
	s := tempStore(t)

	r1 := fittedRecord(t, "m1", "")
	r1.CreatedAt = time.Now().UTC()
	if _, err := s.SaveModel(r1); err != nil {
		t.Fatalf("SaveModel m1: %v", err)
	}
	r2 := fittedRecord(t, "m2", "m1")
	r2.CreatedAt = r1.CreatedAt.Add(time.Second)
	if _, err := s.SaveModel(r2); err != nil {
		t.Fatalf("SaveModel m2: %v", err)
	}

	models, err := s.ListModels(10)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ModelID != "m2" || models[1].ModelID != "m1" {
		t.Fatalf("expected newest first, got %s, %s", models[0].ModelID, models[1].ModelID)
	}
	// List is metadata only.
	if models[0].Probs != nil {
		t.Errorf("expected nil Probs in list")
	}
	if len(models[0].States) == 0 {
		t.Errorf("expected states in list")
	}

	one, err := s.ListModels(1)
	if err != nil {
		t.Fatalf("ListModels(1): %v", err)
	}
	if len(one) != 1 || one[0].ModelID != "m2" {
		t.Fatalf("limit not applied: %+v", one)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestNewStoreWithDB(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("NewStoreWithDB: %v", err)
	}
	if _, err := s.SaveModel(fittedRecord(t, "mem", "")); err != nil {
		t.Fatalf("SaveModel on in-memory store: %v", err)
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestSaveModelOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	s.Close()

	if _, err := s.SaveModel(fittedRecord(t, "m1", "")); err == nil {
		t.Fatal("expected error on closed DB")
	}
}

func TestGetActiveOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	s.SaveModel(fittedRecord(t, "m1", ""))
	s.Close()

	if _, err := s.GetActive(); err == nil {
		t.Fatal("expected error on closed DB")
	}
}

func TestNewStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "corrupt.db")
	os.WriteFile(dbPath, []byte("not a sqlite database"), 0644)

	if _, err := NewStore(dbPath); err == nil {
		t.Fatal("expected error for corrupted DB file")
	}
}

func TestSaveModelDuplicateID(t *testing.T) {
	s := tempStore(t)

	if _, err := s.SaveModel(fittedRecord(t, "m1", "")); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if _, err := s.SaveModel(fittedRecord(t, "m1", "")); err == nil {
		t.Fatal("expected primary key violation for duplicate model id")
	}

	// The failed save must not have clobbered the stored transitions.
	got, err := s.GetModel("m1")
	if err != nil {
		t.Fatalf("GetModel after failed save: %v", err)
	}
	if len(got.Probs) == 0 {
		t.Fatal("original model lost after failed duplicate save")
	}
}
