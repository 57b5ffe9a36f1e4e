package transition

import (
	"errors"
	"math"
	"testing"
)

func obsRow(session string, ts int64, label string) Observation {
	return Observation{SessionID: session, Timestamp: ts, Label: label}
}

func TestEstimate_CountsAndNormalizes(t *testing.T) {
	// Session a: 2:2 → 2:2 → 2:3. Session b: 2:2 → 2:2.
	obs := []Observation{
		obsRow("a", 1, "2:2"),
		obsRow("a", 2, "2:2"),
		obsRow("a", 3, "2:3"),
		obsRow("b", 1, "2:2"),
		obsRow("b", 2, "2:2"),
	}

	m, err := Estimate(obs, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// 3 pairs total: 2:2→2:2 twice, 2:2→2:3 once.
	if m.Observed() != 3 {
		t.Fatalf("expected 3 observed pairs, got %d", m.Observed())
	}
	if got := m.Prob("2:2", "2:2"); math.Abs(got-2.0/3.0) > 1e-12 {
		t.Errorf("P(2:2→2:2) = %v, want 2/3", got)
	}
	if got := m.Prob("2:2", "2:3"); math.Abs(got-1.0/3.0) > 1e-12 {
		t.Errorf("P(2:2→2:3) = %v, want 1/3", got)
	}
	// Unobserved pair carries zero mass, not a smoothed remainder.
	if got := m.Prob("2:3", "2:2"); got != 0 {
		t.Errorf("P(2:3→2:2) = %v, want 0", got)
	}
}

func TestEstimate_SessionBoundariesNotCrossed(t *testing.T) {
	// Last row of session a and first row of session b would form the
	// pair x→y if boundaries leaked.
	obs := []Observation{
		obsRow("a", 1, "x"),
		obsRow("a", 2, "x"),
		obsRow("b", 5, "y"),
		obsRow("b", 6, "y"),
	}

	m, err := Estimate(obs, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Prob("x", "y"); got != 0 {
		t.Errorf("cross-session pair counted: P(x→y) = %v, want 0", got)
	}
	if m.Observed() != 2 {
		t.Errorf("expected 2 pairs, got %d", m.Observed())
	}
}

func TestEstimate_InterleavedSessions(t *testing.T) {
	// Sessions may interleave in the table; pairing follows each
	// session's own consecutive rows.
	obs := []Observation{
		obsRow("a", 1, "x"),
		obsRow("b", 1, "y"),
		obsRow("a", 2, "z"),
		obsRow("b", 2, "z"),
	}

	m, err := Estimate(obs, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Prob("x", "z"); got != 1 {
		t.Errorf("P(x→z) = %v, want 1", got)
	}
	if got := m.Prob("y", "z"); got != 1 {
		t.Errorf("P(y→z) = %v, want 1", got)
	}
	if got := m.Prob("x", "y"); got != 0 {
		t.Errorf("P(x→y) = %v, want 0", got)
	}
}

func TestEstimate_TerminalLabelEntersVocabulary(t *testing.T) {
	// "3:3" only ever appears as the final row, so it gets no outgoing
	// row but must still be part of the vocabulary.
	obs := []Observation{
		obsRow("a", 1, "2:2"),
		obsRow("a", 2, "3:3"),
	}

	m, err := Estimate(obs, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !m.Has("3:3") {
		t.Fatalf("terminal label missing from vocabulary")
	}
	if m.RowDefined("3:3") {
		t.Errorf("terminal label should have no outgoing row")
	}
	if m.RowDefined("2:2") != true {
		t.Errorf("expected defined row for 2:2")
	}
}

func TestEstimate_EmptyInput(t *testing.T) {
	_, err := Estimate(nil, DefaultConfig())
	if !errors.Is(err, ErrNoObservations) {
		t.Fatalf("expected ErrNoObservations, got %v", err)
	}
}

func TestEstimate_NoPairs(t *testing.T) {
	// Every session has exactly one row: nothing to count.
	obs := []Observation{
		obsRow("a", 1, "x"),
		obsRow("b", 1, "y"),
		obsRow("c", 9, "z"),
	}
	_, err := Estimate(obs, DefaultConfig())
	if !errors.Is(err, ErrNoTransitions) {
		t.Fatalf("expected ErrNoTransitions, got %v", err)
	}
}

func TestEstimate_MissingIdentifiers(t *testing.T) {
	_, err := Estimate([]Observation{obsRow("", 1, "x")}, DefaultConfig())
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "session_id" || fe.Row != 0 {
		t.Fatalf("expected FieldError on session_id at row 0, got %v", err)
	}

	_, err = Estimate([]Observation{obsRow("a", 1, "x"), obsRow("a", 2, "")}, DefaultConfig())
	if !errors.As(err, &fe) || fe.Field != "label" || fe.Row != 1 {
		t.Fatalf("expected FieldError on label at row 1, got %v", err)
	}
}

func TestEstimate_RejectsUnorderedTimestamps(t *testing.T) {
	obs := []Observation{
		obsRow("a", 5, "x"),
		obsRow("a", 7, "y"),
		obsRow("a", 7, "z"), // equal timestamp is a violation too
	}

	_, err := Estimate(obs, DefaultConfig())
	var oe *OrderingError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OrderingError, got %v", err)
	}
	if oe.SessionID != "a" || oe.Index != 2 || oe.Prev != 7 || oe.Curr != 7 {
		t.Errorf("unexpected ordering detail: %+v", oe)
	}
}

func TestEstimate_SmoothingDensifiesRows(t *testing.T) {
	obs := []Observation{
		obsRow("a", 1, "x"),
		obsRow("a", 2, "x"),
		obsRow("a", 3, "y"),
	}

	cfg := DefaultConfig()
	cfg.Smoothing = 1
	m, err := Estimate(obs, cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Vocabulary {x, y}: row x saw x once and y once, so with α=1 every
	// cell is (count+1)/(2+1*2) = (count+1)/4.
	if got := m.Prob("x", "x"); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("smoothed P(x→x) = %v, want 0.5", got)
	}
	if got := m.Prob("x", "y"); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("smoothed P(x→y) = %v, want 0.5", got)
	}
	// y has no outgoing pair: still undefined even with smoothing on.
	if m.RowDefined("y") {
		t.Errorf("smoothing must not invent rows for successor-less states")
	}

	var sum float64
	for _, p := range m.Row("x") {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("smoothed row mass = %v, want 1", sum)
	}
}

func TestEstimate_RowsSumToOne(t *testing.T) {
	obs := []Observation{
		obsRow("a", 1, "x"), obsRow("a", 2, "y"), obsRow("a", 3, "x"),
		obsRow("a", 4, "z"), obsRow("a", 5, "x"), obsRow("a", 6, "x"),
		obsRow("b", 1, "y"), obsRow("b", 2, "z"), obsRow("b", 3, "y"),
	}

	m, err := Estimate(obs, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, from := range m.States() {
		if !m.RowDefined(from) {
			continue
		}
		var sum float64
		for _, p := range m.Row(from) {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %q sums to %v, want 1", from, sum)
		}
	}
}
