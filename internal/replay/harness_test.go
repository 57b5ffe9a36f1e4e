package replay

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

// #region harness-tests

// TestReplay_AccuracySession is the primary regression test: on
// self-persistent data with noisy emissions, the decoded path must beat
// the raw argmax baseline. The expected counts are hand-computed from the
// fixture's fitted matrix (P(2:2→2:2)=0.875, P(2:3→2:3)=5/6).
func TestReplay_AccuracySession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "accuracy_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, failed, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("unexpected failed sessions: %v", failed)
	}
	if len(results) != len(f.PredictRows) {
		t.Fatalf("expected %d results, got %d", len(f.PredictRows), len(results))
	}

	s := Summarize(results, failed)
	if s.Rows != 19 || s.ScoredRows != 19 || s.Sessions != 4 {
		t.Fatalf("unexpected shape: %+v", s)
	}
	// Raw baseline misreads the noisy rows: 16/19.
	if s.RawCorrect != 16 {
		t.Errorf("RawCorrect = %d, want 16", s.RawCorrect)
	}
	// Decoding recovers the noise in p1/p2 but smooths over p4's genuine
	// one-step flip: 18/19.
	if s.DecodedCorrect != 18 {
		t.Errorf("DecodedCorrect = %d, want 18", s.DecodedCorrect)
	}
	if math.Abs(s.RawAccuracy-16.0/19.0) > 1e-12 {
		t.Errorf("RawAccuracy = %v", s.RawAccuracy)
	}
	if math.Abs(s.DecodedAccuracy-18.0/19.0) > 1e-12 {
		t.Errorf("DecodedAccuracy = %v", s.DecodedAccuracy)
	}
	if s.Improvement <= 0 {
		t.Errorf("expected positive improvement, got %v", s.Improvement)
	}

	ok, reason := s.Meets(f.Expected)
	if !ok {
		t.Errorf("expected fixture expectations to hold: %s", reason)
	}
}

// TestReplay_FailedSession verifies that a session with stalled timestamps
// fails alone: the other session still decodes and the summary names the
// failed one.
func TestReplay_FailedSession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "failed_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, failed, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(failed) != 1 {
		t.Fatalf("expected 1 failed session, got %v", failed)
	}
	if _, ok := failed["stalled"]; !ok {
		t.Fatalf("expected session 'stalled' to fail, got %v", failed)
	}

	// The healthy session decoded; the stalled one contributed no labels.
	if results[0].Decoded != "2:2" || results[1].Decoded != "2:2" {
		t.Errorf("ok session decoded %q, %q", results[0].Decoded, results[1].Decoded)
	}
	if results[2].Decoded != "" || results[3].Decoded != "" {
		t.Errorf("stalled session rows must stay empty")
	}

	s := Summarize(results, failed)
	if len(s.FailedSessions) != 1 || s.FailedSessions[0] != "stalled" {
		t.Errorf("FailedSessions = %v", s.FailedSessions)
	}
	if s.RawCorrect != 4 || s.DecodedCorrect != 2 {
		t.Errorf("expected raw 4, decoded 2; got raw %d, decoded %d", s.RawCorrect, s.DecodedCorrect)
	}

	// Losing rows to a rejected session drops decoded below raw, which
	// Meets must flag regardless of thresholds.
	if ok, _ := s.Meets(f.Expected); ok {
		t.Error("expected Meets to fail when decoded loses to raw")
	}
}

func TestReplay_FitErrorPropagates(t *testing.T) {
	f := &Fixture{
		PredictRows: []FixturePredictRow{
			{SessionID: "p", Timestamp: 1, Actual: "x", Emissions: map[string]float64{"x": 1}},
		},
	}
	if _, _, err := Replay(context.Background(), f); err == nil {
		t.Fatal("expected error when there is nothing to fit on")
	}
}

func TestReplay_CancelledContext(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "accuracy_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := Replay(ctx, f); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)
	if s.Rows != 0 || s.RawAccuracy != 0 || s.DecodedAccuracy != 0 {
		t.Errorf("expected zeroed summary, got %+v", s)
	}
}

func TestSummaryMeets_Thresholds(t *testing.T) {
	s := ReplaySummary{RawAccuracy: 0.80, DecodedAccuracy: 0.85, Improvement: 0.05}

	if ok, _ := s.Meets(FixtureExpected{MinDecodedAccuracy: 0.84, MinImprovement: 0.04}); !ok {
		t.Error("expected pass when both thresholds met")
	}
	if ok, reason := s.Meets(FixtureExpected{MinDecodedAccuracy: 0.9}); ok || reason == "" {
		t.Error("expected fail below min decoded accuracy")
	}
	if ok, _ := s.Meets(FixtureExpected{MinImprovement: 0.06}); ok {
		t.Error("expected fail below min improvement")
	}
}

// #endregion harness-tests
