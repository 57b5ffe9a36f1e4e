package transition

import (
	"fmt"
	"math"
	"sort"

	"github.com/minodes/hmm-filter/internal/vocab"
)

// #region matrix
// Matrix is a row-stochastic transition matrix over the label vocabulary,
// stored sparsely as from → (to → probability). Pairs never observed carry
// zero mass and are only floored at decode time; states with no observed
// successor have no row at all ("undefined") rather than a uniform one.
// A Matrix is immutable after construction and safe for concurrent readers.
type Matrix struct {
	vocab     *vocab.Vocabulary
	probs     map[string]map[string]float64
	observed  int64
	smoothing float64
}

// Prob returns the stored transition probability, or 0 when the pair was
// never observed or the from-state has no row.
func (m *Matrix) Prob(from, to string) float64 {
	return m.probs[from][to]
}

// LogProb returns log of the stored probability, flooring absent or zero
// entries at log(floor) so log-space scores never hit -Inf.
func (m *Matrix) LogProb(from, to string, floor float64) float64 {
	if p := m.probs[from][to]; p > 0 {
		return math.Log(p)
	}
	return math.Log(floor)
}

// RowDefined reports whether the from-state has at least one observed
// successor.
func (m *Matrix) RowDefined(from string) bool {
	return len(m.probs[from]) > 0
}

// Row returns a copy of the outgoing distribution for a state. The copy is
// nil for undefined rows.
func (m *Matrix) Row(from string) map[string]float64 {
	src, ok := m.probs[from]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(src))
	for to, p := range src {
		out[to] = p
	}
	return out
}

// Has reports whether the label is part of the fitted vocabulary.
func (m *Matrix) Has(label string) bool {
	return m.vocab.Has(label)
}

// States returns the vocabulary labels in lexicographic order.
func (m *Matrix) States() []string {
	return m.vocab.Labels()
}

// Size returns the number of distinct labels in the vocabulary.
func (m *Matrix) Size() int {
	return m.vocab.Size()
}

// Observed returns the number of transition pairs counted during fitting.
func (m *Matrix) Observed() int64 {
	return m.observed
}

// Smoothing returns the Laplace pseudo-count the matrix was fitted with.
func (m *Matrix) Smoothing() float64 {
	return m.smoothing
}

// Probs returns a deep copy of the complete from → (to → p) mapping, the
// form the store and the export tool persist.
func (m *Matrix) Probs() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m.probs))
	for from, row := range m.probs {
		cp := make(map[string]float64, len(row))
		for to, p := range row {
			cp[to] = p
		}
		out[from] = cp
	}
	return out
}

// #endregion matrix

// #region from-probs
// FromProbs rebuilds a matrix from a persisted mapping. The vocabulary is
// the union of row keys, column keys, and extraStates (states that appear
// only as terminal labels have no row of their own). Probabilities outside
// [0, 1] are rejected.
func FromProbs(probs map[string]map[string]float64, extraStates []string, smoothing float64, observed int64) (*Matrix, error) {
	v := vocab.New()

	fromLabels := make([]string, 0, len(probs))
	for from := range probs {
		fromLabels = append(fromLabels, from)
	}
	sort.Strings(fromLabels)

	cp := make(map[string]map[string]float64, len(probs))
	for _, from := range fromLabels {
		v.Add(from)
		row := probs[from]
		toLabels := make([]string, 0, len(row))
		for to := range row {
			toLabels = append(toLabels, to)
		}
		sort.Strings(toLabels)

		dst := make(map[string]float64, len(row))
		for _, to := range toLabels {
			p := row[to]
			if p < 0 || p > 1 || math.IsNaN(p) {
				return nil, fmt.Errorf("transition %q -> %q: probability %v outside [0, 1]", from, to, p)
			}
			v.Add(to)
			dst[to] = p
		}
		cp[from] = dst
	}
	for _, s := range extraStates {
		v.Add(s)
	}

	return &Matrix{vocab: v, probs: cp, observed: observed, smoothing: smoothing}, nil
}

// #endregion from-probs
