package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/transition"
	"github.com/minodes/hmm-filter/internal/viterbi"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a labeled
// fit stream, a predict stream with ground-truth labels, and accuracy
// expectations for the decoded output.
type Fixture struct {
	Description string              `json:"description"`
	Config      FixtureConfig       `json:"config"`
	FitRows     []FixtureFitRow     `json:"fit_rows"`
	PredictRows []FixturePredictRow `json:"predict_rows"`
	Expected    FixtureExpected     `json:"expected"`
}

// FixtureConfig mirrors filter.Config with JSON tags.
type FixtureConfig struct {
	Floor     float64 `json:"floor"`
	Smoothing float64 `json:"smoothing"`
	Workers   int     `json:"workers"`
}

// FixtureFitRow mirrors transition.Observation with JSON tags.
type FixtureFitRow struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

// FixturePredictRow is one predict-phase row plus its ground-truth label.
type FixturePredictRow struct {
	SessionID string             `json:"session_id"`
	Timestamp int64              `json:"timestamp"`
	Actual    string             `json:"actual"`
	Emissions map[string]float64 `json:"emissions"`
}

// FixtureExpected captures the accuracy bar a replay run must clear.
type FixtureExpected struct {
	MinDecodedAccuracy float64 `json:"min_decoded_accuracy"`
	MinImprovement     float64 `json:"min_improvement"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToObservation converts a FixtureFitRow to a domain Observation.
func (r *FixtureFitRow) ToObservation() transition.Observation {
	return transition.Observation{
		SessionID: r.SessionID,
		Timestamp: r.Timestamp,
		Label:     r.Label,
	}
}

// ToRow converts a FixturePredictRow to a domain Row.
func (r *FixturePredictRow) ToRow() filter.Row {
	return filter.Row{
		SessionID: r.SessionID,
		Timestamp: r.Timestamp,
		Emissions: viterbi.Emission(r.Emissions),
	}
}

// ToFilterConfig converts a FixtureConfig to a domain filter.Config.
// Zero values keep their meaning of "use the default".
func (c *FixtureConfig) ToFilterConfig() filter.Config {
	return filter.Config{
		Floor:     c.Floor,
		Smoothing: c.Smoothing,
		Workers:   c.Workers,
	}
}

// #endregion fixture-loader
