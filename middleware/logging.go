package middleware

import (
	"strconv"
	"time"

	"DiaBot/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader     = "X-Request-Id"
	ContextRequestIDKey = "request_id"
)

// RequestID injects an X-Request-Id header when missing.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, requestID)
		}
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Set(ContextRequestIDKey, requestID)
		c.Next()
	}
}

// Logging writes one line per request and records request duration.
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		metrics.RequestDuration.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Observe(latency.Seconds())

		ev := logger.Info()
		if status >= 500 {
			ev = logger.Error()
		} else if status >= 400 {
			ev = logger.Warn()
		}
		if id := CurrentIdentity(c); id != nil {
			ev = ev.Uint("user_id", id.UserID)
		}
		ev.Str("request_id", c.GetString(ContextRequestIDKey)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Msg(c.Errors.ByType(gin.ErrorTypePrivate).String())
	}
}
