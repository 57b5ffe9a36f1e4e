package rpc

import (
	"errors"
	"time"
)

// #region results
// FitResult holds the response from a Fit RPC call.
type FitResult struct {
	ModelID  string
	States   []string
	Observed int64
}

// PredictResult holds the response from a Predict RPC call. Failed maps
// session ids to failure reasons; labels of failed sessions are empty.
type PredictResult struct {
	RunID  string
	Labels []string
	Failed map[string]string
}

// ModelInfo holds the response from an ActiveModel RPC call: the complete
// persisted mapping, enough to rebuild the matrix client-side.
type ModelInfo struct {
	ModelID   string
	ParentID  string
	CreatedAt time.Time
	States    []string
	Probs     map[string]map[string]float64
	Smoothing float64
	Observed  int64
}

// #endregion results

// ErrNotFitted is returned (as FailedPrecondition over the wire) when
// Predict or ActiveModel is called before any model was fitted.
var ErrNotFitted = errors.New("no active model: fit first")
