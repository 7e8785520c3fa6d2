package artifact

import (
	"path/filepath"
	"strings"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
)

// Artifact names written by the training pipeline into the model-results directory.
const (
	ModelFileName       = "model.joblib"
	DescriptionFileName = "description.json"
	PredictionFileName  = "predictions.csv"
)

// Bundle locates the model artifacts. Paths are not checked for existence here.
type Bundle struct {
	Dir             string
	ModelPath       string
	DescriptionPath string
	PredictionPath  string
}

type Resolver struct {
	dir string
}

// NewResolver takes the model-results directory read from configuration at startup.
// A relative directory is anchored to the working directory of the server, the
// predictor runs elsewhere and must get absolute artifact paths.
func NewResolver(modelResultsDir string) *Resolver {
	dir := strings.TrimSpace(modelResultsDir)
	if dir == "" {
		return &Resolver{}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Resolver{dir: dir}
}

func (r *Resolver) Configured() bool {
	return r.dir != ""
}

func (r *Resolver) Resolve() (Bundle, error) {
	if r.dir == "" {
		return Bundle{}, perrors.ErrModelNotConfigured
	}
	dir := filepath.Clean(r.dir)
	return Bundle{
		Dir:             dir,
		ModelPath:       filepath.Join(dir, ModelFileName),
		DescriptionPath: filepath.Join(dir, DescriptionFileName),
		PredictionPath:  filepath.Join(dir, PredictionFileName),
	}, nil
}
