// Package eval validates a fitted transition matrix before it is saved or
// activated: structural checks that fail the model, plus informational
// metrics that describe how much smoothing it can be expected to do.
package eval

import (
	"fmt"
	"math"

	"github.com/minodes/hmm-filter/internal/transition"
)

// #region eval-harness
// EvalHarness runs lightweight validation on a fitted matrix.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates the matrix and returns pass/fail with metrics. Fit paths
// refuse to activate a model that fails here.
func (h *EvalHarness) Run(m *transition.Matrix) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Vocabulary size
	vocabSize := m.Size()
	vocabPass := vocabSize >= h.config.MinVocabulary
	metrics = append(metrics, EvalMetric{
		Name:  "vocabulary_size",
		Value: float64(vocabSize),
		Pass:  vocabPass,
	})
	if !vocabPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("vocabulary size %d below %d", vocabSize, h.config.MinVocabulary))
	}

	// 2. Probability range: every stored cell within [0, 1]
	var rangeViolations float64
	for _, row := range m.Probs() {
		for _, p := range row {
			if p < 0 || p > 1 || math.IsNaN(p) {
				rangeViolations++
			}
		}
	}
	rangePass := rangeViolations == 0
	metrics = append(metrics, EvalMetric{
		Name:  "probability_range_violations",
		Value: rangeViolations,
		Pass:  rangePass,
	})
	if !rangePass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%.0f probabilities outside [0, 1]", rangeViolations))
	}

	// 3. Row mass: every defined row sums to 1 within tolerance
	var maxDrift float64
	states := m.States()
	defined := 0
	for _, from := range states {
		if !m.RowDefined(from) {
			continue
		}
		defined++
		var sum float64
		for _, p := range m.Row(from) {
			sum += p
		}
		if drift := math.Abs(sum - 1); drift > maxDrift {
			maxDrift = drift
		}
	}
	massPass := maxDrift <= h.config.RowSumTolerance
	metrics = append(metrics, EvalMetric{
		Name:  "row_mass_drift",
		Value: maxDrift,
		Pass:  massPass,
	})
	if !massPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("row mass drifts from 1 by %.3g", maxDrift))
	}

	// 4. Undefined rows: share of states with no outgoing distribution.
	// Informational; decode floors these rows, so they never block.
	var undefinedShare float64
	if vocabSize > 0 {
		undefinedShare = float64(vocabSize-defined) / float64(vocabSize)
	}
	metrics = append(metrics, EvalMetric{
		Name:  "undefined_row_share",
		Value: undefinedShare,
		Pass:  true,
	})

	// 5. Self persistence: mean P(s→s) across defined rows. Informational;
	// low persistence means decoding will mostly follow raw emissions.
	var selfMass float64
	if defined > 0 {
		for _, from := range states {
			if m.RowDefined(from) {
				selfMass += m.Prob(from, from)
			}
		}
		selfMass /= float64(defined)
	}
	metrics = append(metrics, EvalMetric{
		Name:  "mean_self_persistence",
		Value: selfMass,
		Pass:  selfMass >= h.config.SelfPersistenceBaseline,
	})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
