package api

import (
	"context"
	"route-validation-service/internal/platform/obs"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// requestID propagates the caller's X-Request-ID, or mints one, into the
// request context so service logs can be correlated with the access log.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), obs.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs end-to-end request duration and response size.
func accessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		if sub := c.GetString(subjectKey); sub != "" {
			ev = ev.Str("subject", sub)
		}
		ev.Str("req_id", obs.RequestID(c.Request.Context())).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.RequestURI()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Int64("dur_ms", time.Since(start).Milliseconds()).
			Msg("request")
	}
}
