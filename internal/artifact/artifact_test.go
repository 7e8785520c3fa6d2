package artifact

import (
	"errors"
	"path/filepath"
	"testing"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "srv", "model_results")

	b, err := NewResolver(dir + string(filepath.Separator)).Resolve()
	require.NoError(t, err)
	assert.Equal(t, dir, b.Dir)
	assert.Equal(t, filepath.Join(dir, "model.joblib"), b.ModelPath)
	assert.Equal(t, filepath.Join(dir, "description.json"), b.DescriptionPath)
	assert.Equal(t, filepath.Join(dir, "predictions.csv"), b.PredictionPath)
}

func TestResolveRelativeDir(t *testing.T) {
	base := t.TempDir()
	t.Chdir(base)

	b, err := NewResolver("model_results").Resolve()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(b.Dir))
	assert.Equal(t, filepath.Join(base, "model_results", "model.joblib"), b.ModelPath)
}

func TestResolveNotConfigured(t *testing.T) {
	for _, dir := range []string{"", "   "} {
		r := NewResolver(dir)
		assert.False(t, r.Configured())

		_, err := r.Resolve()
		assert.True(t, errors.Is(err, perrors.ErrModelNotConfigured))
		assert.Equal(t, perrors.KindModelNotConfigured, perrors.KindOf(err))
	}
}
