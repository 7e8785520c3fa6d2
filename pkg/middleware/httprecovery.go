package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HTTPRecovery turns a handler panic into a 500 JSON response
func HTTPRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Ctx(c.Request.Context()).Msgf("Panic occurred: %v\n%s", err, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      fmt.Sprintf("%v", err),
					"code":       perrors.KindInternal.String(),
					"request_id": GetRequestID(c),
				})
			}
		}()
		c.Next()
	}
}
