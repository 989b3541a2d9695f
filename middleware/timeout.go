package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/types"
	"github.com/gin-gonic/gin"
)

// Timeout bounds the request context. Handlers and stores observe the
// deadline through ctx; if nothing was written when it expires, a 503 is sent.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Success: false,
				Message: "request timeout",
				Error: &types.ErrorDetail{
					Timestamp: time.Now().Format(time.RFC3339),
					Path:      c.Request.URL.Path,
					Code:      errors.ErrServiceUnavailable,
				},
			})
		}
	}
}
