package predict

import (
	"context"
	"errors"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/internal/artifact"
	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/Meesho/BharatMLStack/predict-server/internal/predictor"
	"github.com/Meesho/BharatMLStack/predict-server/internal/scratch"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/metric"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Meesho/BharatMLStack/predict-server/internal/handler/predict"

// Handler runs one prediction request end to end. It holds no per-request state,
// so one Handler serves all concurrent requests.
type Handler struct {
	scratch   *scratch.Manager
	resolver  *artifact.Resolver
	predictor predictor.Predictor
}

func NewHandler(scratchManager *scratch.Manager, resolver *artifact.Resolver, p predictor.Predictor) *Handler {
	return &Handler{
		scratch:   scratchManager,
		resolver:  resolver,
		predictor: p,
	}
}

// Predict normalizes body, stages it in a private scratch directory, runs the
// predictor against the configured model and serializes its rows. The scratch
// directory is removed before Predict returns or panics.
func (h *Handler) Predict(ctx context.Context, body []byte) (resp *Response, err error) {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "predict")
	defer func() {
		r := recover()
		if r != nil {
			err = perrors.Newf(perrors.KindInternal, "predict panicked: %v", r)
		}
		if err != nil {
			kind := perrors.KindOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind.String())
			metric.Incr(metric.PredictFailureCount, metric.BuildTag(metric.NewTag(metric.TagFailureKind, kind.String())))
		}
		span.End()
		if r != nil {
			panic(r)
		}
	}()

	rows, err := Normalize(body)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("predict.rows", rows.Len()), attribute.Int("predict.columns", len(rows.Columns())))

	err = h.scratch.With(func(sh *scratch.Handle) error {
		metric.Gauge(metric.ScratchInFlight, float64(h.scratch.InFlight()), nil)
		log.Debug().Ctx(ctx).Str("scratch_id", sh.ID).Int("rows", rows.Len()).Msg("scratch acquired")

		if err := stage(ctx, "write", func(context.Context) error { return h.scratch.Write(sh, rows) }); err != nil {
			return perrors.Wrapf(perrors.KindInternal, err, "stage request data")
		}

		var bundle artifact.Bundle
		if err := stage(ctx, "resolve", func(context.Context) error {
			var rerr error
			bundle, rerr = h.resolver.Resolve()
			return rerr
		}); err != nil {
			return err
		}

		var result *predictor.Result
		start := time.Now()
		err = stage(ctx, "invoke", func(ctx context.Context) error {
			var perr error
			result, perr = h.predictor.Predict(ctx, predictor.Request{
				DataPath:   sh.DataPath,
				WorkDir:    sh.Dir,
				OutputPath: sh.OutputPath,
				Bundle:     bundle,
			})
			return perr
		})
		metric.Timing(metric.PredictorLatency, time.Since(start), nil)
		if err != nil {
			switch perrors.KindOf(err) {
			case perrors.KindArtifactMissing, perrors.KindInferenceFailure:
				return err
			default:
				return perrors.Wrapf(perrors.KindInferenceFailure, err, "predictor failed")
			}
		}

		return stage(ctx, "serialize", func(context.Context) error {
			var serr error
			resp, serr = Serialize(result)
			return serr
		})
	})
	if err != nil {
		var pe *perrors.Error
		if !errors.As(err, &pe) {
			err = perrors.Wrapf(perrors.KindInternal, err, "acquire scratch resource")
		}
		return nil, err
	}
	return resp, nil
}

func stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "predict."+name, trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, perrors.KindOf(err).String())
		return err
	}
	return nil
}
