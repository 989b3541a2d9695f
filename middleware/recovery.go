package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/blackscorpionster/rubits/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 error envelope. A panic after
// the response was started only aborts the request.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			traceLogger := logging.WithTraceID(logger, GetTraceID(c))
			event := traceLogger.Error().
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack())
			if playerID := c.GetString(PlayerIDKey); playerID != "" {
				event = event.Str("player_id", playerID)
			}
			event.Msg("Panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{
				Success: false,
				Message: "internal server error",
				Error: &types.ErrorDetail{
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Path:      c.Request.URL.Path,
					Code:      errors.ErrInternalServerError,
				},
			})
		}()

		c.Next()
	}
}
