package eval

// #region eval-config
// EvalConfig holds thresholds for fitted-model validation.
type EvalConfig struct {
	RowSumTolerance float64 // reject if any defined row drifts from mass 1 beyond this
	MinVocabulary   int     // reject if the vocabulary is smaller than this
	// SelfPersistenceBaseline marks the mean self-transition mass below
	// which the model is unlikely to smooth anything. Informational only.
	SelfPersistenceBaseline float64
}

// DefaultEvalConfig returns the standard validation thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		RowSumTolerance:         1e-9,
		MinVocabulary:           1,
		SelfPersistenceBaseline: 0.5,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of fitted-model validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Metric returns the named metric, or a zero EvalMetric if absent.
func (r EvalResult) Metric(name string) EvalMetric {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m
		}
	}
	return EvalMetric{}
}

// #endregion eval-result
