package predictor

import (
	"context"

	"github.com/Meesho/BharatMLStack/predict-server/internal/artifact"
)

// Request is everything one prediction needs: where the tabular input lives,
// which artifacts to load and the request-private directory to work in.
type Request struct {
	DataPath   string
	WorkDir    string
	OutputPath string
	Bundle     artifact.Bundle
}

// Result holds prediction rows in predictor order. Cells are scalars or nested slices.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Predictor loads a model bundle and computes predictions for the data at req.DataPath.
// Failures are reported as ArtifactMissing or InferenceFailure.
type Predictor interface {
	Predict(ctx context.Context, req Request) (*Result, error)
}

// Func adapts an ordinary function to Predictor.
type Func func(ctx context.Context, req Request) (*Result, error)

func (f Func) Predict(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
