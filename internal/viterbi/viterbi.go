// Package viterbi decodes the most likely label path for one session from
// sparse per-timestep emissions and a fitted transition matrix. All scoring
// happens in log space with a positive floor standing in for zero or absent
// probabilities, so decoding is total: unknown labels and undefined
// transition rows degrade gracefully instead of failing.
package viterbi

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/minodes/hmm-filter/internal/transition"
)

// #region decode
// Decode returns the maximum-likelihood label path for a session's emission
// sequence. The output always has exactly one label per input timestep.
// Candidate states at each timestep are the union of the fitted vocabulary
// and the labels named by that timestep's emission, walked in lexicographic
// order; when scores tie, the first maximum wins, so results are
// deterministic across runs.
func Decode(m *transition.Matrix, seq []Emission, cfg Config) ([]string, error) {
	if len(seq) == 0 {
		return nil, ErrNoEmissions
	}
	if cfg.Floor <= 0 {
		return nil, ErrInvalidFloor
	}
	for t, e := range seq {
		for label, p := range e {
			if p < 0 || math.IsNaN(p) {
				return nil, &EmissionError{Index: t, Label: label, Value: p}
			}
		}
	}

	states := m.States()
	logFloor := math.Log(cfg.Floor)

	// 1. Forward pass: per-timestep candidate sets, scores, and
	// backpointers into the previous timestep's candidates.
	cands := make([][]string, len(seq))
	scores := make([][]float64, len(seq))
	back := make([][]int, len(seq))

	cands[0] = candidates(m, states, seq[0])
	if len(cands[0]) == 0 {
		return nil, fmt.Errorf("timestep 0: no candidate states")
	}
	scores[0] = make([]float64, len(cands[0]))
	for j, s := range cands[0] {
		scores[0][j] = emissionScore(seq[0], s, logFloor)
	}

	for t := 1; t < len(seq); t++ {
		cands[t] = candidates(m, states, seq[t])
		if len(cands[t]) == 0 {
			return nil, fmt.Errorf("timestep %d: no candidate states", t)
		}
		scores[t] = make([]float64, len(cands[t]))
		back[t] = make([]int, len(cands[t]))

		prev := cands[t-1]
		reach := make([]float64, len(prev))
		for j, s := range cands[t] {
			for i, p := range prev {
				reach[i] = scores[t-1][i] + logProb(m, p, s, logFloor)
			}
			best := floats.MaxIdx(reach)
			back[t][j] = best
			scores[t][j] = reach[best] + emissionScore(seq[t], s, logFloor)
		}
	}

	// 2. Backtrack from the best final state.
	path := make([]string, len(seq))
	j := floats.MaxIdx(scores[len(seq)-1])
	for t := len(seq) - 1; t >= 0; t-- {
		path[t] = cands[t][j]
		if t > 0 {
			j = back[t][j]
		}
	}
	return path, nil
}

// #endregion decode

// #region argmax
// Argmax returns the label with the highest emission probability, breaking
// ties toward the lexicographically smallest label. It is the raw
// per-timestep baseline the decoded path is compared against, and what a
// one-timestep decode degrades to. Returns "" for an empty emission.
func Argmax(e Emission) string {
	if len(e) == 0 {
		return ""
	}
	labels := make([]string, 0, len(e))
	for label := range e {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, label := range labels[1:] {
		if e[label] > e[best] {
			best = label
		}
	}
	return best
}

// #endregion argmax

// #region helpers
// candidates returns the union of the vocabulary and the emission's labels
// in lexicographic order. states must already be sorted.
func candidates(m *transition.Matrix, states []string, e Emission) []string {
	var extra []string
	for label := range e {
		if !m.Has(label) {
			extra = append(extra, label)
		}
	}
	if len(extra) == 0 {
		return states
	}
	merged := make([]string, 0, len(states)+len(extra))
	merged = append(merged, states...)
	merged = append(merged, extra...)
	sort.Strings(merged)
	return merged
}

func emissionScore(e Emission, label string, logFloor float64) float64 {
	if p := e[label]; p > 0 {
		return math.Log(p)
	}
	return logFloor
}

func logProb(m *transition.Matrix, from, to string, logFloor float64) float64 {
	if p := m.Prob(from, to); p > 0 {
		return math.Log(p)
	}
	return logFloor
}

// #endregion helpers
