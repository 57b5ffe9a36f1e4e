package transition

import (
	"math"
	"reflect"
	"testing"
)

func TestMatrix_LogProbFloorsAbsentPairs(t *testing.T) {
	m, err := FromProbs(map[string]map[string]float64{
		"x": {"x": 0.9, "y": 0.1},
	}, nil, 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	if got := m.LogProb("x", "x", 1e-12); math.Abs(got-math.Log(0.9)) > 1e-12 {
		t.Errorf("LogProb(x→x) = %v, want log(0.9)", got)
	}
	// Absent pair and undefined row both fall to the floor.
	want := math.Log(1e-12)
	if got := m.LogProb("x", "z", 1e-12); got != want {
		t.Errorf("LogProb(x→z) = %v, want log(floor)", got)
	}
	if got := m.LogProb("ghost", "x", 1e-12); got != want {
		t.Errorf("LogProb(ghost→x) = %v, want log(floor)", got)
	}
	if math.IsInf(m.LogProb("x", "z", 1e-12), -1) {
		t.Errorf("floored log prob must stay finite")
	}
}

func TestFromProbs_RoundTrip(t *testing.T) {
	probs := map[string]map[string]float64{
		"2:2": {"2:2": 0.716, "2:3": 0.063, "3:3": 0.008},
		"2:3": {"2:2": 0.5, "2:3": 0.5},
	}

	m, err := FromProbs(probs, []string{"9:9"}, 0.5, 42)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(m.Probs(), probs) {
		t.Errorf("Probs() round trip mismatch: %v", m.Probs())
	}
	if m.Smoothing() != 0.5 || m.Observed() != 42 {
		t.Errorf("metadata lost: smoothing=%v observed=%d", m.Smoothing(), m.Observed())
	}
	// Vocabulary covers row keys, column keys, and extra states.
	want := []string{"2:2", "2:3", "3:3", "9:9"}
	if got := m.States(); !reflect.DeepEqual(got, want) {
		t.Errorf("States = %v, want %v", got, want)
	}
	if m.RowDefined("3:3") || m.RowDefined("9:9") {
		t.Errorf("column-only and extra states must stay undefined rows")
	}
}

func TestFromProbs_RejectsOutOfRange(t *testing.T) {
	_, err := FromProbs(map[string]map[string]float64{"x": {"y": -0.1}}, nil, 0, 0)
	if err == nil {
		t.Fatalf("expected error for negative probability")
	}
	_, err = FromProbs(map[string]map[string]float64{"x": {"y": 1.5}}, nil, 0, 0)
	if err == nil {
		t.Fatalf("expected error for probability above 1")
	}
}

func TestMatrix_RowAndProbsAreCopies(t *testing.T) {
	m, err := FromProbs(map[string]map[string]float64{"x": {"y": 1}}, nil, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	row := m.Row("x")
	row["y"] = 0.25
	if got := m.Prob("x", "y"); got != 1 {
		t.Errorf("mutating Row() copy leaked into matrix: P(x→y) = %v", got)
	}

	all := m.Probs()
	all["x"]["y"] = 0.25
	if got := m.Prob("x", "y"); got != 1 {
		t.Errorf("mutating Probs() copy leaked into matrix: P(x→y) = %v", got)
	}

	if m.Row("nope") != nil {
		t.Errorf("Row of undefined state should be nil")
	}
}
