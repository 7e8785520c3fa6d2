package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/Meesho/BharatMLStack/predict-server/internal/handler/predict"
	"github.com/Meesho/BharatMLStack/predict-server/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PredictHandler is the pipeline behind POST /predict.
type PredictHandler interface {
	Predict(ctx context.Context, body []byte) (*predict.Response, error)
}

type Controller struct {
	handler      PredictHandler
	maxBodyBytes int64
}

// NewController wires the predict handler; maxBodyBytes <= 0 disables the body limit.
func NewController(handler PredictHandler, maxBodyBytes int64) *Controller {
	return &Controller{
		handler:      handler,
		maxBodyBytes: maxBodyBytes,
	}
}

// Health reports liveness; it never touches the model or scratch storage.
func (ctl *Controller) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *Controller) Predict(ctx *gin.Context) {
	if ctl.maxBodyBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, ctl.maxBodyBytes)
	}
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctl.writeError(ctx, http.StatusRequestEntityTooLarge,
				perrors.Newf(perrors.KindMalformedPayload, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		ctl.writeError(ctx, http.StatusBadRequest, perrors.Wrapf(perrors.KindMalformedPayload, err, "read request body"))
		return
	}

	resp, err := ctl.handler.Predict(ctx.Request.Context(), body)
	if err != nil {
		ctl.writeError(ctx, StatusFor(err), err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// StatusFor maps a pipeline failure to its HTTP status.
func StatusFor(err error) int {
	switch perrors.KindOf(err) {
	case perrors.KindMalformedPayload:
		return http.StatusBadRequest
	case perrors.KindModelNotConfigured:
		return http.StatusServiceUnavailable
	case perrors.KindInferenceFailure:
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			return http.StatusRequestTimeout
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (ctl *Controller) writeError(ctx *gin.Context, status int, err error) {
	kind := perrors.KindOf(err)
	requestID := middleware.GetRequestID(ctx)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Ctx(ctx.Request.Context()).Err(err).
		Str("request_id", requestID).
		Str("failure_kind", kind.String()).
		Int("status", status).
		Msg("predict request failed")
	ctx.JSON(status, gin.H{
		"error":      err.Error(),
		"code":       kind.String(),
		"request_id": requestID,
	})
}
