package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/transition"
)

// #region client
// Client is a typed wrapper over the filter service: domain values in,
// domain values out, the structpb plumbing hidden.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to a filter service at addr. The connection is lazy;
// errors surface on the first call.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// NewClientWithConn wraps an established connection, e.g. one dialed over
// bufconn in tests.
func NewClientWithConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion client

// #region calls

// Fit trains a model from labeled observations and activates it on the
// server. smoothing <= 0 requests raw maximum-likelihood estimation.
func (c *Client) Fit(ctx context.Context, obs []transition.Observation, smoothing float64) (FitResult, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"rows": observationsToValue(obs),
	}}
	if smoothing > 0 {
		in.Fields["smoothing"] = structpb.NewNumberValue(smoothing)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fitMethod, in, out); err != nil {
		return FitResult{}, fmt.Errorf("fit rpc: %w", err)
	}

	f := out.GetFields()
	return FitResult{
		ModelID:  f["model_id"].GetStringValue(),
		States:   stringsFromValue(f["states"]),
		Observed: int64(f["observed"].GetNumberValue()),
	}, nil
}

// Predict decodes the rows against the server's active model.
func (c *Client) Predict(ctx context.Context, rows []filter.Row) (PredictResult, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"rows": rowsToValue(rows),
	}}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, predictMethod, in, out); err != nil {
		return PredictResult{}, fmt.Errorf("predict rpc: %w", err)
	}

	f := out.GetFields()
	return PredictResult{
		RunID:  f["run_id"].GetStringValue(),
		Labels: stringsFromValue(f["labels"]),
		Failed: failedFromValue(f["failed"]),
	}, nil
}

// ActiveModel fetches the server's active model, complete enough to
// rebuild the matrix locally.
func (c *Client) ActiveModel(ctx context.Context) (ModelInfo, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, activeModelMethod, &structpb.Struct{}, out); err != nil {
		return ModelInfo{}, fmt.Errorf("active model rpc: %w", err)
	}

	f := out.GetFields()
	created, _ := time.Parse(time.RFC3339Nano, f["created_at"].GetStringValue())
	return ModelInfo{
		ModelID:   f["model_id"].GetStringValue(),
		ParentID:  f["parent_id"].GetStringValue(),
		CreatedAt: created,
		States:    stringsFromValue(f["states"]),
		Probs:     probsFromValue(f["transitions"]),
		Smoothing: f["smoothing"].GetNumberValue(),
		Observed:  int64(f["observed"].GetNumberValue()),
	}, nil
}

// #endregion calls
