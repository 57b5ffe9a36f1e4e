package viterbi

import (
	"errors"
	"fmt"
)

// #region emission
// Emission is one timestep's sparse class-probability estimate from the
// upstream classifier: label → probability. Omitted labels mean zero.
// Values must be non-negative but are not required to sum to 1.
type Emission map[string]float64

// #endregion emission

// #region config
// Config holds decoding parameters.
type Config struct {
	// Floor is the probability substituted for zero or absent transition
	// and emission entries before taking logs, keeping -Inf out of the
	// score comparisons. Must be positive.
	Floor float64
}

// DefaultConfig returns the standard decoding floor.
func DefaultConfig() Config {
	return Config{Floor: 1e-12}
}

// #endregion config

// #region errors
// ErrNoEmissions is returned when Decode is called with an empty sequence.
var ErrNoEmissions = errors.New("no emissions")

// ErrInvalidFloor is returned for a non-positive probability floor.
var ErrInvalidFloor = errors.New("floor must be positive")

// EmissionError reports an emission entry with an invalid probability.
type EmissionError struct {
	Index int // timestep within the sequence
	Label string
	Value float64
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emission %d: label %q has invalid probability %v", e.Index, e.Label, e.Value)
}

// #endregion errors
