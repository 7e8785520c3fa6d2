package middleware

import (
	"io"
	"net/http"
	"strings"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// GzipDecompress transparently inflates request bodies sent with Content-Encoding: gzip.
func GzipDecompress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(strings.TrimSpace(c.GetHeader("Content-Encoding")), "gzip") || c.Request.Body == nil {
			c.Next()
			return
		}
		zr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      "invalid gzip request body: " + err.Error(),
				"code":       perrors.KindMalformedPayload.String(),
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Request.Body = &gzipBody{Reader: zr, orig: c.Request.Body}
		c.Request.Header.Del("Content-Encoding")
		c.Request.Header.Del("Content-Length")
		c.Request.ContentLength = -1
		c.Next()
	}
}

type gzipBody struct {
	*gzip.Reader
	orig io.Closer
}

func (b *gzipBody) Close() error {
	zerr := b.Reader.Close()
	if err := b.orig.Close(); err != nil {
		return err
	}
	return zerr
}
