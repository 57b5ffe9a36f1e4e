package store

import (
	"time"

	"github.com/minodes/hmm-filter/internal/transition"
)

// #region model-record
// ModelRecord is the persisted form of a fitted model: the complete
// from → (to → probability) mapping plus fit metadata. A record can be
// loaded and decoded against without re-running estimation.
type ModelRecord struct {
	ModelID   string
	ParentID  string // model this one replaced, "" for the first
	States    []string
	Probs     map[string]map[string]float64
	Smoothing float64
	Observed  int64
	CreatedAt time.Time
}

// RecordFromMatrix captures a fitted matrix as a storable record.
func RecordFromMatrix(modelID, parentID string, m *transition.Matrix) ModelRecord {
	return ModelRecord{
		ModelID:   modelID,
		ParentID:  parentID,
		States:    m.States(),
		Probs:     m.Probs(),
		Smoothing: m.Smoothing(),
		Observed:  m.Observed(),
		CreatedAt: time.Now().UTC(),
	}
}

// Matrix rebuilds the transition matrix from the record.
func (r ModelRecord) Matrix() (*transition.Matrix, error) {
	return transition.FromProbs(r.Probs, r.States, r.Smoothing, r.Observed)
}

// #endregion model-record
