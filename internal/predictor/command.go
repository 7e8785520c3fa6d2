package predictor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	stderrTailBytes = 2048
	killWaitDelay   = 2 * time.Second
)

type CommandConfig struct {
	Command string
	// Args may reference {data_path}, {model_path}, {description_file},
	// {prediction_file} and {output_path}.
	Args    []string
	Timeout time.Duration
}

// Command runs an external predictor process once per request.
type Command struct {
	cfg CommandConfig
}

func NewCommand(cfg CommandConfig) *Command {
	return &Command{cfg: cfg}
}

func (c *Command) Predict(ctx context.Context, req Request) (*Result, error) {
	if err := checkArtifacts(req); err != nil {
		return nil, err
	}
	path, err := exec.LookPath(c.cfg.Command)
	if err != nil {
		return nil, perrors.Wrapf(perrors.KindArtifactMissing, err, "predictor executable %q not found", c.cfg.Command)
	}
	// cmd.Dir is the scratch dir, a relative path from LookPath would resolve there.
	if path, err = filepath.Abs(path); err != nil {
		return nil, perrors.Wrapf(perrors.KindArtifactMissing, err, "predictor executable %q", c.cfg.Command)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd := exec.CommandContext(ctx, path, expandArgs(c.cfg.Args, req)...)
	cmd.Dir = req.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = killWaitDelay

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, perrors.Wrapf(perrors.KindInferenceFailure, ctxErr, "predictor did not finish")
		}
		return nil, perrors.Wrapf(perrors.KindArtifactMissing, err, "start predictor")
	}
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, perrors.Wrapf(perrors.KindInferenceFailure, ctxErr, "predictor did not finish")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, perrors.Newf(perrors.KindInferenceFailure, "predictor exited with code %d: %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, perrors.Wrapf(perrors.KindInferenceFailure, err, "wait for predictor")
	}
	if stderr.Len() > 0 {
		log.Debug().Ctx(ctx).Str("stderr", stderr.String()).Msg("predictor stderr")
	}

	out, err := openOutput(req.OutputPath, stdout.Bytes())
	if err != nil {
		return nil, err
	}
	defer out.Close()
	return readCSVResult(out)
}

func checkArtifacts(req Request) error {
	b := req.Bundle
	for _, p := range []string{b.ModelPath, b.DescriptionPath} {
		info, err := os.Stat(p)
		if err != nil {
			return perrors.Wrapf(perrors.KindArtifactMissing, err, "model artifact %s unavailable", filepath.Base(p))
		}
		if !info.Mode().IsRegular() {
			return perrors.Newf(perrors.KindArtifactMissing, "model artifact %s is not a regular file", filepath.Base(p))
		}
	}
	if info, err := os.Stat(filepath.Dir(b.PredictionPath)); err != nil || !info.IsDir() {
		return perrors.Wrapf(perrors.KindArtifactMissing, err, "prediction output directory %s unavailable", filepath.Dir(b.PredictionPath))
	}
	return nil
}

func expandArgs(args []string, req Request) []string {
	r := strings.NewReplacer(
		"{data_path}", req.DataPath,
		"{model_path}", req.Bundle.ModelPath,
		"{description_file}", req.Bundle.DescriptionPath,
		"{prediction_file}", req.Bundle.PredictionPath,
		"{output_path}", req.OutputPath,
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// openOutput prefers the per-request output file and falls back to stdout.
func openOutput(path string, stdout []byte) (io.ReadCloser, error) {
	if path != "" {
		f, err := os.Open(path)
		if err == nil {
			if info, serr := f.Stat(); serr == nil && info.Size() > 0 {
				return f, nil
			}
			_ = f.Close()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, perrors.Wrapf(perrors.KindInferenceFailure, err, "open predictor output")
		}
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, perrors.Newf(perrors.KindInferenceFailure, "predictor produced no output")
	}
	return io.NopCloser(bytes.NewReader(stdout)), nil
}

// readCSVResult parses a header row followed by one row per prediction.
func readCSVResult(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	records, err := cr.ReadAll()
	if err != nil {
		return nil, perrors.Wrapf(perrors.KindInferenceFailure, err, "parse predictor output")
	}
	if len(records) < 2 {
		return nil, perrors.Newf(perrors.KindInferenceFailure, "predictor output has no prediction rows")
	}
	res := &Result{Columns: records[0], Rows: make([][]any, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = cell
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) Len() int { return len(t.buf) }

func (t *tailBuffer) String() string { return string(t.buf) }
