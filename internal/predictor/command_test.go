package predictor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/internal/artifact"
	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture lays out a model-results dir and a request work dir holding data.csv.
func fixture(t *testing.T, data string) Request {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell predictors need a POSIX sh")
	}
	modelDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, artifact.ModelFileName), []byte("model"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, artifact.DescriptionFileName), []byte("{}"), 0o600))
	bundle, err := artifact.NewResolver(modelDir).Resolve()
	require.NoError(t, err)

	work := t.TempDir()
	dataPath := filepath.Join(work, "data.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(data), 0o600))
	return Request{
		DataPath:   dataPath,
		WorkDir:    work,
		OutputPath: filepath.Join(work, "predictions.csv"),
		Bundle:     bundle,
	}
}

func shellPredictor(t *testing.T, script string, timeout time.Duration) *Command {
	t.Helper()
	path := filepath.Join(t.TempDir(), "predict.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))
	return NewCommand(CommandConfig{
		Command: "sh",
		Args:    []string{path, "{data_path}", "{output_path}", "{model_path}"},
		Timeout: timeout,
	})
}

func TestCommandReadsOutputFile(t *testing.T) {
	req := fixture(t, "age,income\n30,50000\n")
	p := shellPredictor(t, `printf 'prediction\n1\n' > "$2"`, time.Minute)

	res, err := p.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"prediction"}, res.Columns)
	assert.Equal(t, [][]any{{"1"}}, res.Rows)
}

func TestCommandFallsBackToStdout(t *testing.T) {
	req := fixture(t, "age,income\n30,50000\n31,60000\n")
	p := shellPredictor(t, `cat "$1"`, time.Minute)

	res, err := p.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, res.Columns)
	assert.Equal(t, [][]any{{"30", "50000"}, {"31", "60000"}}, res.Rows)
}

func TestCommandRunsInWorkDir(t *testing.T) {
	req := fixture(t, "a\n1\n")
	p := shellPredictor(t, `printf 'dir\n%s\n' "$(pwd -P)"`, time.Minute)

	res, err := p.Predict(context.Background(), req)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(req.WorkDir)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{want}}, res.Rows)
}

func TestCommandFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		p := shellPredictor(t, "echo 'model load failed' >&2; exit 3", time.Minute)

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindInferenceFailure, perrors.KindOf(err))
		assert.Contains(t, err.Error(), "code 3")
		assert.Contains(t, err.Error(), "model load failed")
	})

	t.Run("timeout", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		p := shellPredictor(t, "exec sleep 5", 100*time.Millisecond)

		start := time.Now()
		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindInferenceFailure, perrors.KindOf(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("caller cancels", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		p := shellPredictor(t, "exec sleep 5", time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()
		_, err := p.Predict(ctx, req)
		assert.Equal(t, perrors.KindInferenceFailure, perrors.KindOf(err))
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("no output", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		p := shellPredictor(t, "exit 0", time.Minute)

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindInferenceFailure, perrors.KindOf(err))
	})

	t.Run("header only", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		p := shellPredictor(t, "echo prediction", time.Minute)

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindInferenceFailure, perrors.KindOf(err))
	})
}

func TestCommandArtifactMissing(t *testing.T) {
	t.Run("model file", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		require.NoError(t, os.Remove(req.Bundle.ModelPath))
		p := shellPredictor(t, "echo never", time.Minute)

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindArtifactMissing, perrors.KindOf(err))
	})

	t.Run("description is a directory", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		require.NoError(t, os.Remove(req.Bundle.DescriptionPath))
		require.NoError(t, os.Mkdir(req.Bundle.DescriptionPath, 0o700))
		p := shellPredictor(t, "echo never", time.Minute)

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindArtifactMissing, perrors.KindOf(err))
	})

	t.Run("model results dir", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		bundle, err := artifact.NewResolver(filepath.Join(t.TempDir(), "missing")).Resolve()
		require.NoError(t, err)
		req.Bundle = bundle
		p := shellPredictor(t, "echo never", time.Minute)

		_, err = p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindArtifactMissing, perrors.KindOf(err))
	})

	t.Run("executable", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		p := NewCommand(CommandConfig{Command: "definitely-not-a-predictor-binary"})

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindArtifactMissing, perrors.KindOf(err))
	})

	t.Run("interpreter cannot start", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		path := filepath.Join(t.TempDir(), "predict.sh")
		require.NoError(t, os.WriteFile(path, []byte("#!/nonexistent/interpreter\n"), 0o755))
		p := NewCommand(CommandConfig{Command: path})

		_, err := p.Predict(context.Background(), req)
		assert.Equal(t, perrors.KindArtifactMissing, perrors.KindOf(err))
		assert.Contains(t, err.Error(), "start predictor")
	})
}

// Relative configuration is resolved against the server's working directory
// even though the predictor runs inside the request work dir.
func TestCommandRelativePaths(t *testing.T) {
	t.Run("model results dir", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		base := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(base, "model_results"), 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(base, "model_results", artifact.ModelFileName), []byte("model"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(base, "model_results", artifact.DescriptionFileName), []byte("{}"), 0o600))
		t.Chdir(base)

		bundle, err := artifact.NewResolver("model_results").Resolve()
		require.NoError(t, err)
		req.Bundle = bundle
		p := NewCommand(CommandConfig{
			Command: "sh",
			Args:    []string{"-c", `test -f "$0" && printf 'prediction\n1\n'`, "{model_path}"},
			Timeout: time.Minute,
		})

		res, err := p.Predict(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"1"}}, res.Rows)
	})

	t.Run("command", func(t *testing.T) {
		req := fixture(t, "a\n1\n")
		base := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(base, "predict.sh"), []byte("#!/bin/sh\nprintf 'prediction\\n2\\n'\n"), 0o755))
		t.Chdir(base)

		p := NewCommand(CommandConfig{Command: "./predict.sh", Timeout: time.Minute})

		res, err := p.Predict(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"2"}}, res.Rows)
	})
}

func TestExpandArgs(t *testing.T) {
	req := Request{
		DataPath:   "/s/data.csv",
		OutputPath: "/s/predictions.csv",
		Bundle: artifact.Bundle{
			ModelPath:       "/m/model.joblib",
			DescriptionPath: "/m/description.json",
			PredictionPath:  "/m/predictions.csv",
		},
	}
	args := expandArgs([]string{"predict", "-dp", "{data_path}", "--model={model_path}", "{description_file}", "{prediction_file}", "{output_path}"}, req)
	assert.Equal(t, []string{"predict", "-dp", "/s/data.csv", "--model=/m/model.joblib", "/m/description.json", "/m/predictions.csv", "/s/predictions.csv"}, args)
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	assert.Equal(t, "defg", b.String())
}
