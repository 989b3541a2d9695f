package middleware

import (
	"time"

	"github.com/blackscorpionster/rubits/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PlayerIDKey is where auth middleware leaves the authenticated player id
const PlayerIDKey = "player_id"

var quietPaths = map[string]bool{
	"/health":     true,
	"/api/health": true,
	"/metrics":    true,
}

// Logging writes one access log line per request. Health checks and metric
// scrapes are only logged when they fail.
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if quietPaths[c.Request.URL.Path] && status < 400 {
			return
		}

		reqLogger := logging.WithTraceID(logger, GetTraceID(c))
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLogger.Error()
		case status >= 400:
			event = reqLogger.Warn()
		default:
			event = reqLogger.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		event = event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("response_size", c.Writer.Size())
		if playerID := c.GetString(PlayerIDKey); playerID != "" {
			event = event.Str("player_id", playerID)
		}
		if ticketID := c.Param("id"); ticketID != "" {
			event = event.Str("ticket_id", ticketID)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("Request completed")
	}
}
