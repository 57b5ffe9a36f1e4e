// Package replay runs recorded fit/predict fixtures end to end and scores
// the decoded output against ground truth. Its accuracy comparison (raw
// per-row argmax vs the decoded path) is the regression baseline for the
// whole filter: on self-persistent data, decoding must not lose to the raw
// baseline.
package replay

import (
	"context"
	"fmt"
	"sort"

	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/transition"
	"github.com/minodes/hmm-filter/internal/viterbi"
)

// #region types
// RowResult captures one predict row's outcome: the classifier's raw
// argmax label vs the label the decoder chose, next to the ground truth.
// Decoded is empty for rows of failed sessions.
type RowResult struct {
	SessionID string
	Timestamp int64
	Actual    string
	Raw       string
	Decoded   string
}

// ReplaySummary provides aggregate accuracy stats from a replay run.
type ReplaySummary struct {
	Rows            int
	ScoredRows      int // rows carrying a ground-truth label
	Sessions        int
	RawCorrect      int
	DecodedCorrect  int
	RawAccuracy     float64
	DecodedAccuracy float64
	Improvement     float64 // decoded - raw
	FailedSessions  []string
}

// Meets checks the summary against a fixture's expectations. Decoding that
// loses to the raw baseline always fails, independent of thresholds.
func (s ReplaySummary) Meets(exp FixtureExpected) (bool, string) {
	if s.DecodedAccuracy < s.RawAccuracy {
		return false, fmt.Sprintf("decoded accuracy %.4f below raw baseline %.4f", s.DecodedAccuracy, s.RawAccuracy)
	}
	if s.DecodedAccuracy < exp.MinDecodedAccuracy {
		return false, fmt.Sprintf("decoded accuracy %.4f below expected %.4f", s.DecodedAccuracy, exp.MinDecodedAccuracy)
	}
	if s.Improvement < exp.MinImprovement {
		return false, fmt.Sprintf("improvement %.4f below expected %.4f", s.Improvement, exp.MinImprovement)
	}
	return true, "all expectations met"
}

// #endregion types

// #region replay
// Replay fits a filter on the fixture's fit rows, decodes its predict
// rows, and returns the per-row comparison plus the failed sessions.
// Session failures are data for the summary, not an error; Replay only
// errors when fitting fails or the predict call as a whole does.
func Replay(ctx context.Context, f *Fixture) ([]RowResult, map[string]error, error) {
	obs := make([]transition.Observation, len(f.FitRows))
	for i := range f.FitRows {
		obs[i] = f.FitRows[i].ToObservation()
	}
	filt, err := filter.Fit(obs, f.Config.ToFilterConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}

	rows := make([]filter.Row, len(f.PredictRows))
	for i := range f.PredictRows {
		rows[i] = f.PredictRows[i].ToRow()
	}
	res, err := filt.Predict(ctx, rows)
	if res == nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}

	results := make([]RowResult, len(f.PredictRows))
	for i := range f.PredictRows {
		pr := &f.PredictRows[i]
		results[i] = RowResult{
			SessionID: pr.SessionID,
			Timestamp: pr.Timestamp,
			Actual:    pr.Actual,
			Raw:       viterbi.Argmax(pr.Emissions),
			Decoded:   res.Labels[i],
		}
	}
	return results, res.Failed, nil
}

// Summarize computes aggregate accuracy stats from replay results.
func Summarize(results []RowResult, failed map[string]error) ReplaySummary {
	s := ReplaySummary{Rows: len(results)}

	sessions := make(map[string]bool)
	for _, r := range results {
		sessions[r.SessionID] = true
		if r.Actual == "" {
			continue
		}
		s.ScoredRows++
		if r.Raw == r.Actual {
			s.RawCorrect++
		}
		if r.Decoded == r.Actual {
			s.DecodedCorrect++
		}
	}
	s.Sessions = len(sessions)

	if s.ScoredRows > 0 {
		s.RawAccuracy = float64(s.RawCorrect) / float64(s.ScoredRows)
		s.DecodedAccuracy = float64(s.DecodedCorrect) / float64(s.ScoredRows)
		s.Improvement = s.DecodedAccuracy - s.RawAccuracy
	}

	for id := range failed {
		s.FailedSessions = append(s.FailedSessions, id)
	}
	sort.Strings(s.FailedSessions)

	return s
}

// #endregion replay
