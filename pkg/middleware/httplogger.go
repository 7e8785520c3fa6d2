package middleware

import (
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/predict-server/pkg/metric"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HTTPLogger logs the request
func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)

		// FullPath is the route template, e.g. /predict, or empty when no route matched
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()

		metricTags := metric.BuildTag(
			metric.NewTag(metric.TagPath, route),
			metric.NewTag(metric.TagMethod, method),
			metric.NewTag(metric.TagHttpStatusCode, strconv.Itoa(statusCode)),
		)
		metric.Incr(metric.ApiRequestCount, metricTags)
		metric.Timing(metric.ApiRequestLatency, latency, metricTags)
		log.Info().Ctx(c.Request.Context()).Msgf("[access] [%s] [%s] %s %s %d %v",
			GetRequestID(c), clientIP, method, route, statusCode, latency)
	}
}
