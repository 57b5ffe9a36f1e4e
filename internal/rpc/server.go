package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/minodes/hmm-filter/internal/eval"
	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/logging"
	"github.com/minodes/hmm-filter/internal/store"
	"github.com/minodes/hmm-filter/internal/transition"
)

// #region server
// Server implements the filter service. Fit is the only writer of the
// active model; Predict calls snapshot it under a read lock and decode
// without holding any lock, so a long batch never blocks a fit.
type Server struct {
	store *store.Store
	cfg   filter.Config
	log   *logrus.Logger

	mu      sync.RWMutex
	active  *filter.Filter
	modelID string
}

// NewServer creates a filter service backed by the given store. cfg sets
// the decode parameters (floor, workers); per-fit smoothing comes from the
// Fit request.
func NewServer(st *store.Store, cfg filter.Config, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{store: st, cfg: cfg, log: log}
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// LoadActive restores the active model from the store. Starting without
// one is not an error: Predict answers FailedPrecondition until the first
// fit lands.
func (s *Server) LoadActive() error {
	rec, err := s.store.GetActive()
	if errors.Is(err, store.ErrNoActiveModel) {
		s.log.Info("no active model yet, waiting for first fit")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load active model: %w", err)
	}
	m, err := rec.Matrix()
	if err != nil {
		return fmt.Errorf("rebuild model %s: %w", rec.ModelID, err)
	}

	s.mu.Lock()
	s.active = filter.New(m, s.cfg)
	s.modelID = rec.ModelID
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"model_id": rec.ModelID,
		"states":   len(rec.States),
	}).Info("active model restored")
	return nil
}

// #endregion server

// #region fit
// Fit estimates a transition matrix from the request rows, validates it,
// persists it as a new version and activates it. A model that fails
// validation is never saved.
func (s *Server) Fit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()

	obs, err := observationsFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cfg := s.cfg
	cfg.Smoothing = in.GetFields()["smoothing"].GetNumberValue()

	flt, err := filter.Fit(obs, cfg)
	if err != nil {
		return nil, statusFromError(err)
	}

	verdict := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(flt.Matrix())
	if !verdict.Passed {
		s.log.WithField("reason", verdict.Reason).Warn("fit rejected")
		return nil, status.Error(codes.FailedPrecondition, verdict.Reason)
	}

	// Parent read, save and swap happen under one critical section so
	// concurrent fits chain versions instead of racing for the pointer.
	s.mu.Lock()
	rec, err := s.store.SaveModel(store.RecordFromMatrix("", s.modelID, flt.Matrix()))
	if err != nil {
		s.mu.Unlock()
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.active = flt
	s.modelID = rec.ModelID
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"model_id": rec.ModelID,
		"states":   len(rec.States),
		"observed": rec.Observed,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("model fitted and activated")

	return fitResponse(rec), nil
}

// #endregion fit

// #region predict
// Predict decodes the request rows against the active model. Per-session
// failures come back in the response's failed map, not as an RPC error;
// only batch-level problems (no model, malformed rows, cancellation) fail
// the call.
func (s *Server) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()

	rows, err := rowsFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.mu.RLock()
	flt, modelID := s.active, s.modelID
	s.mu.RUnlock()
	if flt == nil {
		return nil, status.Error(codes.FailedPrecondition, ErrNotFitted.Error())
	}

	res, aggErr := flt.Predict(ctx, rows)
	if res == nil {
		return nil, statusFromError(aggErr)
	}

	runStatus, reason := logging.StatusOK, ""
	if aggErr != nil {
		runStatus, reason = logging.StatusPartial, aggErr.Error()
	}
	entry := logging.RunEntry{
		RunID:      res.RunID,
		ModelID:    modelID,
		Sessions:   countSessions(rows),
		RowsTotal:  res.Rows(),
		RowsFailed: res.RowsFailed(),
		Status:     runStatus,
		Reason:     reason,
	}
	if err := logging.LogRun(s.store.DB(), entry); err != nil {
		s.log.WithError(err).Warn("record decode run")
	}

	fields := logrus.Fields{
		"run_id":   res.RunID,
		"model_id": modelID,
		"sessions": entry.Sessions,
		"rows":     entry.RowsTotal,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}
	if len(res.Failed) > 0 {
		fields["failed_sessions"] = sortedSessions(res.Failed)
		s.log.WithFields(fields).Warn("decode finished with failed sessions")
	} else {
		s.log.WithFields(fields).Info("decode finished")
	}

	return predictResponse(res), nil
}

// #endregion predict

// #region active-model
// ActiveModel returns the persisted form of the active model, complete
// enough to rebuild the matrix client-side.
func (s *Server) ActiveModel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.store.GetActive()
	if errors.Is(err, store.ErrNoActiveModel) {
		return nil, status.Error(codes.FailedPrecondition, ErrNotFitted.Error())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return modelResponse(rec), nil
}

// #endregion active-model

// #region responses

func fitResponse(rec store.ModelRecord) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"model_id": structpb.NewStringValue(rec.ModelID),
		"states":   stringsToValue(rec.States),
		"observed": structpb.NewNumberValue(float64(rec.Observed)),
	}}
}

func predictResponse(res *filter.Result) *structpb.Struct {
	failed := make(map[string]*structpb.Value, len(res.Failed))
	for session, ferr := range res.Failed {
		failed[session] = structpb.NewStringValue(ferr.Error())
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id": structpb.NewStringValue(res.RunID),
		"labels": stringsToValue(res.Labels),
		"failed": structpb.NewStructValue(&structpb.Struct{Fields: failed}),
	}}
}

func modelResponse(rec store.ModelRecord) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"model_id":    structpb.NewStringValue(rec.ModelID),
		"parent_id":   structpb.NewStringValue(rec.ParentID),
		"created_at":  structpb.NewStringValue(rec.CreatedAt.Format(time.RFC3339Nano)),
		"states":      stringsToValue(rec.States),
		"transitions": probsToValue(rec.Probs),
		"smoothing":   structpb.NewNumberValue(rec.Smoothing),
		"observed":    structpb.NewNumberValue(float64(rec.Observed)),
	}}
}

// #endregion responses

// #region helpers

// statusFromError maps domain errors onto gRPC codes: bad input is the
// caller's fault, cancellation keeps its context code, the rest is ours.
func statusFromError(err error) error {
	var fieldErr *transition.FieldError
	var orderErr *transition.OrderingError
	switch {
	case errors.Is(err, transition.ErrNoObservations),
		errors.Is(err, transition.ErrNoTransitions),
		errors.As(err, &fieldErr),
		errors.As(err, &orderErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func countSessions(rows []filter.Row) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[r.SessionID] = struct{}{}
	}
	return len(seen)
}

// #endregion helpers
