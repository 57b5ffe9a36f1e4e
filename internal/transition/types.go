package transition

import (
	"errors"
	"fmt"
)

// #region observation
// Observation is one fit-phase row: a label observed for a session at a
// point in time. Timestamps only need to order rows within a session; the
// scale (epoch seconds, logical counter) is up to the caller.
type Observation struct {
	SessionID string
	Timestamp int64
	Label     string
}

// #endregion observation

// #region config
// Config holds estimation parameters.
type Config struct {
	// Smoothing is the Laplace pseudo-count added to every (from, to)
	// cell over the full vocabulary before normalizing. 0 means raw
	// maximum likelihood. Rows with no observed successor stay undefined
	// either way.
	Smoothing float64
	// RowSumTolerance bounds the allowed drift of a normalized row from
	// probability mass 1. Used by validation, not by estimation itself.
	RowSumTolerance float64
}

// DefaultConfig returns raw maximum-likelihood estimation.
func DefaultConfig() Config {
	return Config{
		Smoothing:       0,
		RowSumTolerance: 1e-9,
	}
}

// #endregion config

// #region errors
// ErrNoObservations is returned when Estimate is called with zero rows.
var ErrNoObservations = errors.New("no observations")

// ErrNoTransitions is returned when no session contains two consecutive
// observations, so no transition pair can be counted.
var ErrNoTransitions = errors.New("no consecutive observations in any session")

// FieldError reports a row missing a required identifier.
type FieldError struct {
	Row   int
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d: missing %s", e.Row, e.Field)
}

// OrderingError reports a session whose timestamps do not strictly
// increase in input order. Rows are rejected rather than re-sorted so a
// shuffled table cannot silently produce a different model.
type OrderingError struct {
	SessionID string
	Index     int   // offending row index in the caller's input
	Prev      int64 // timestamp of the preceding row in the session
	Curr      int64 // timestamp at Index
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("session %q: timestamp %d at row %d does not advance past %d",
		e.SessionID, e.Curr, e.Index, e.Prev)
}

// #endregion errors
