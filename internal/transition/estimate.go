// Package transition estimates the transition matrix of the filter: the
// probability of each label following each other label within a session,
// counted from consecutive observation pairs and row-normalized.
package transition

import (
	"github.com/minodes/hmm-filter/internal/vocab"
)

// #region estimate
// Estimate fits a transition matrix from time-ordered observations.
// Rows are grouped by session in input order; within a session timestamps
// must strictly increase or the whole call is rejected with an
// OrderingError. Pairs are counted only between consecutive rows of the
// same session, never across session boundaries. Every label seen enters
// the vocabulary, including labels that only ever appear as the last row
// of a session.
func Estimate(obs []Observation, cfg Config) (*Matrix, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}

	// 1. Validate identifiers and ordering in a single pass, counting
	// pairs as we go. prev tracks each session's last-seen row.
	type cursor struct {
		timestamp int64
		label     string
	}
	prev := make(map[string]cursor)

	v := vocab.New()
	counts := make(map[string]map[string]int64)
	rowTotals := make(map[string]int64)
	var pairs int64

	for i, o := range obs {
		if o.SessionID == "" {
			return nil, &FieldError{Row: i, Field: "session_id"}
		}
		if o.Label == "" {
			return nil, &FieldError{Row: i, Field: "label"}
		}
		v.Add(o.Label)

		if c, seen := prev[o.SessionID]; seen {
			if o.Timestamp <= c.timestamp {
				return nil, &OrderingError{
					SessionID: o.SessionID,
					Index:     i,
					Prev:      c.timestamp,
					Curr:      o.Timestamp,
				}
			}
			row := counts[c.label]
			if row == nil {
				row = make(map[string]int64)
				counts[c.label] = row
			}
			row[o.Label]++
			rowTotals[c.label]++
			pairs++
		}
		prev[o.SessionID] = cursor{timestamp: o.Timestamp, label: o.Label}
	}

	if pairs == 0 {
		return nil, ErrNoTransitions
	}

	// 2. Normalize each observed row. With Laplace smoothing the row is
	// densified over the whole vocabulary; without it only observed pairs
	// carry mass. States with zero outgoing pairs get no row.
	probs := make(map[string]map[string]float64, len(counts))
	labels := v.Labels()
	for from, row := range counts {
		total := float64(rowTotals[from])
		dst := make(map[string]float64, len(row))
		if cfg.Smoothing > 0 {
			denom := total + cfg.Smoothing*float64(len(labels))
			for _, to := range labels {
				dst[to] = (float64(row[to]) + cfg.Smoothing) / denom
			}
		} else {
			for to, n := range row {
				dst[to] = float64(n) / total
			}
		}
		probs[from] = dst
	}

	return &Matrix{vocab: v, probs: probs, observed: pairs, smoothing: cfg.Smoothing}, nil
}

// #endregion estimate
