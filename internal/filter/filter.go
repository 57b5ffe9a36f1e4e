// Package filter is the trained-model facade: fit a transition matrix once,
// then decode many batches of session rows against it. Predict partitions
// rows by session, decodes sessions in parallel on a bounded worker pool,
// and merges the label paths back into the caller's row order. Session
// failures are isolated: one bad session never blocks the others.
package filter

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/minodes/hmm-filter/internal/transition"
	"github.com/minodes/hmm-filter/internal/viterbi"
)

// #region filter
// Filter bundles a fitted transition matrix with decode configuration.
// It is immutable and safe for concurrent Predict calls.
type Filter struct {
	matrix *transition.Matrix
	config Config
}

// Fit estimates a transition matrix from observations and wraps it in a
// ready-to-use filter.
func Fit(obs []transition.Observation, cfg Config) (*Filter, error) {
	cfg = cfg.withDefaults()
	tc := transition.DefaultConfig()
	tc.Smoothing = cfg.Smoothing
	m, err := transition.Estimate(obs, tc)
	if err != nil {
		return nil, err
	}
	return &Filter{matrix: m, config: cfg}, nil
}

// New wraps an already-fitted matrix, e.g. one reloaded from the store.
func New(m *transition.Matrix, cfg Config) *Filter {
	return &Filter{matrix: m, config: cfg.withDefaults()}
}

// Matrix returns the fitted transition matrix.
func (f *Filter) Matrix() *transition.Matrix {
	return f.matrix
}

// Config returns the effective configuration, defaults applied.
func (f *Filter) Config() Config {
	return f.config
}

// #endregion filter

// #region predict
// task is one session's decode job: the emission sequence in timestamp
// order plus the original row positions to merge the path back into.
type task struct {
	sessionID string
	indices   []int
	seq       []viterbi.Emission
	path      []string
	err       error
}

// Predict decodes every session in rows and returns labels aligned with
// the input order. Sessions decode independently: a failed session leaves
// empty labels at its row positions and an entry in Result.Failed, and all
// failures come back aggregated in the returned error. The Result is
// returned alongside a non-nil error so the surviving sessions' labels
// stay usable. On context cancellation no result is returned at all;
// partial output is never surfaced as complete.
func (f *Filter) Predict(ctx context.Context, rows []Row) (*Result, error) {
	runID := uuid.New().String()
	if len(rows) == 0 {
		return &Result{RunID: runID, Labels: []string{}, Failed: map[string]error{}}, nil
	}

	// 1. Partition by session in first-appearance order. A row without a
	// session id cannot be attributed to any session, so it fails the
	// whole call rather than a session.
	order := make([]string, 0)
	bySession := make(map[string]*task)
	for i, r := range rows {
		if r.SessionID == "" {
			return nil, &transition.FieldError{Row: i, Field: "session_id"}
		}
		tk := bySession[r.SessionID]
		if tk == nil {
			tk = &task{sessionID: r.SessionID}
			bySession[r.SessionID] = tk
			order = append(order, r.SessionID)
		}
		if n := len(tk.indices); n > 0 && tk.err == nil {
			prev := rows[tk.indices[n-1]].Timestamp
			if r.Timestamp <= prev {
				tk.err = &transition.OrderingError{
					SessionID: r.SessionID,
					Index:     i,
					Prev:      prev,
					Curr:      r.Timestamp,
				}
			}
		}
		tk.indices = append(tk.indices, i)
		tk.seq = append(tk.seq, r.Emissions)
	}

	// 2. Decode sessions on a bounded worker pool. Each task is owned by
	// exactly one worker; the matrix is read-only, so no locking.
	workers := f.config.Workers
	if workers > len(order) {
		workers = len(order)
	}
	jobs := make(chan *task, len(order))
	vc := viterbi.Config{Floor: f.config.Floor}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range jobs {
				if ctx.Err() != nil {
					return
				}
				if tk.err != nil {
					continue
				}
				tk.path, tk.err = viterbi.Decode(f.matrix, tk.seq, vc)
			}
		}()
	}
	for _, id := range order {
		jobs <- bySession[id]
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Merge label paths back by original row index, never by
	// completion order. Failures aggregate in sorted session order so
	// the error text is deterministic.
	sorted := make([]string, len(order))
	copy(sorted, order)
	sort.Strings(sorted)

	labels := make([]string, len(rows))
	failed := make(map[string]error)
	var merr *multierror.Error
	for _, id := range sorted {
		tk := bySession[id]
		if tk.err != nil {
			failed[id] = tk.err
			merr = multierror.Append(merr, &SessionError{SessionID: id, Err: tk.err})
			continue
		}
		for k, idx := range tk.indices {
			labels[idx] = tk.path[k]
		}
	}

	return &Result{RunID: runID, Labels: labels, Failed: failed}, merr.ErrorOrNil()
}

// #endregion predict
