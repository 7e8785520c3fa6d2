package predictor

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/pkg/inmemorycache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingPredictor(calls *atomic.Int32, err error) Predictor {
	return Func(func(ctx context.Context, req Request) (*Result, error) {
		calls.Add(1)
		if err != nil {
			return nil, err
		}
		data, rerr := os.ReadFile(req.DataPath)
		if rerr != nil {
			return nil, rerr
		}
		return &Result{Columns: []string{"prediction"}, Rows: [][]any{{len(data)}}}, nil
	})
}

func newCache(t *testing.T) inmemorycache.InMemoryCache {
	t.Helper()
	c, err := inmemorycache.NewV1("predictions-test", 1)
	require.NoError(t, err)
	return c
}

func TestCachedHit(t *testing.T) {
	req := fixture(t, "a\n1\n")
	var calls atomic.Int32
	p := NewCached(countingPredictor(&calls, nil), newCache(t), time.Minute)

	first, err := p.Predict(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []any{4}, first.Rows[0])
	assert.Equal(t, []any{json.Number("4")}, second.Rows[0])
	assert.Equal(t, first.Columns, second.Columns)
}

func TestCachedKeyFollowsInputAndModel(t *testing.T) {
	req := fixture(t, "a\n1\n")
	var calls atomic.Int32
	p := NewCached(countingPredictor(&calls, nil), newCache(t), time.Minute)

	_, err := p.Predict(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(req.DataPath, []byte("a\n2\n"), 0o600))
	_, err = p.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, os.WriteFile(req.Bundle.ModelPath, []byte("retrained model"), 0o600))
	_, err = p.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCachedSkipsFailures(t *testing.T) {
	req := fixture(t, "a\n1\n")
	var calls atomic.Int32
	p := NewCached(countingPredictor(&calls, assert.AnError), newCache(t), time.Minute)

	_, err := p.Predict(context.Background(), req)
	assert.ErrorIs(t, err, assert.AnError)
	_, err = p.Predict(context.Background(), req)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedMissingArtifactsBypassCache(t *testing.T) {
	req := fixture(t, "a\n1\n")
	require.NoError(t, os.Remove(req.Bundle.ModelPath))
	var calls atomic.Int32
	p := NewCached(countingPredictor(&calls, nil), newCache(t), time.Minute)

	_, err := p.Predict(context.Background(), req)
	require.NoError(t, err)
	_, err = p.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
