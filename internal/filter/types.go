package filter

import (
	"fmt"
	"runtime"

	"github.com/minodes/hmm-filter/internal/viterbi"
)

// #region config
// Config holds the knobs for fitting and decoding. Zero values fall back
// to the defaults, so Config{} behaves like DefaultConfig().
type Config struct {
	// Floor is the probability substituted for zero or absent transition
	// and emission entries at decode time (default 1e-12).
	Floor float64
	// Smoothing is the Laplace pseudo-count used when fitting
	// (default 0, raw maximum likelihood).
	Smoothing float64
	// Workers bounds how many sessions decode concurrently
	// (default GOMAXPROCS).
	Workers int
}

// DefaultConfig returns the standard filter configuration.
func DefaultConfig() Config {
	return Config{
		Floor:     1e-12,
		Smoothing: 0,
		Workers:   runtime.GOMAXPROCS(0),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Floor <= 0 {
		c.Floor = d.Floor
	}
	if c.Smoothing < 0 {
		c.Smoothing = 0
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// #endregion config

// #region row
// Row is one predict-phase row: a session's sparse emission at a point in
// time. Within a session, rows must arrive in strictly increasing
// timestamp order.
type Row struct {
	SessionID string
	Timestamp int64
	Emissions viterbi.Emission
}

// #endregion row

// #region result
// Result carries the decoded labels of one Predict call. Labels aligns
// index-for-index with the input rows; rows belonging to failed sessions
// hold the empty string and the failure is recorded in Failed under the
// session id.
type Result struct {
	RunID  string
	Labels []string
	Failed map[string]error
}

// Rows returns the number of decoded rows.
func (r *Result) Rows() int {
	return len(r.Labels)
}

// RowsFailed returns how many input rows belonged to failed sessions.
func (r *Result) RowsFailed() int {
	n := 0
	for _, l := range r.Labels {
		if l == "" {
			n++
		}
	}
	return n
}

// #endregion result

// #region session-error
// SessionError wraps a failure with the session it belongs to. Predict
// aggregates these, one per failed session, in sorted session order.
type SessionError struct {
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %q: %v", e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// #endregion session-error
