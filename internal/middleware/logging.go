package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"accelo-slack-notifier/internal/log"
)

// TraceHeader is echoed on every response so callers can correlate logs.
const TraceHeader = "X-Trace-ID"

// requestTraceID prefers the Cloud Run trace header ("TRACE_ID/SPAN_ID;o=1"),
// then X-Trace-ID, then a fresh uuid.
func requestTraceID(c *gin.Context) string {
	if cloudTrace := c.GetHeader("X-Cloud-Trace-Context"); cloudTrace != "" {
		traceID, _, _ := strings.Cut(cloudTrace, "/")
		if traceID != "" {
			return traceID
		}
	}
	if traceID := c.GetHeader(TraceHeader); traceID != "" {
		return traceID
	}
	return uuid.New().String()
}

// LoggingMiddleware assigns a trace id to every request and logs its outcome.
// The query string is never logged since it carries the webhook token.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := requestTraceID(c)
		c.Set(string(log.TraceIDKey), traceID)
		c.Header(TraceHeader, traceID)

		ctx := log.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		log.Debug(ctx, "Request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"app", c.Query("app"),
			"type", c.Query("type"),
			"user_agent", c.Request.UserAgent(),
			"remote_addr", c.ClientIP(),
		)

		c.Next()

		log.Info(ctx, "Request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}
