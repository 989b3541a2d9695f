package middleware

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDKey is the gin context key holding the request's trace id
	TraceIDKey = "trace_id"
	// TraceIDHeader carries the trace id in and out
	TraceIDHeader = "X-Trace-ID"
	// RequestIDHeader is accepted as the trace id when TraceIDHeader is absent
	RequestIDHeader = "X-Request-ID"
)

var validTraceID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type traceContextKey struct{}

// TraceID tags each request with a trace id, reusing a well-formed inbound
// X-Trace-ID or X-Request-ID. The id is echoed in the response and placed on
// the request context for services and audit events.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = c.GetHeader(RequestIDHeader)
		}
		if !validTraceID.MatchString(traceID) {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Request = c.Request.WithContext(ContextWithTraceID(c.Request.Context(), traceID))

		c.Next()
	}
}

// ContextWithTraceID stores a trace id in ctx
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey{}, traceID)
}

// TraceIDFromContext returns the trace id stored by TraceID, or ""
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceContextKey{}).(string)
	return id
}

// GetTraceID extracts trace ID from gin context
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
