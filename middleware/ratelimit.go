package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/blackscorpionster/rubits/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idle     time.Duration
	logger   zerolog.Logger
	// OnLimited, when set, is called with the route of every rejected request
	OnLimited func(route string)
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with burst per IP
func NewRateLimiter(requestsPerSecond float64, burst int, logger zerolog.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		logger:   logger.With().Str("component", "rate_limiter").Logger(),
	}
}

func (rl *RateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Handler rejects requests over the limit with 429
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.allow(c.ClientIP(), time.Now()) {
			c.Next()
			return
		}

		rl.logger.Warn().
			Str("trace_id", GetTraceID(c)).
			Str("client_ip", c.ClientIP()).
			Str("path", c.Request.URL.Path).
			Msg("Rate limit exceeded")
		if rl.OnLimited != nil {
			rl.OnLimited(c.FullPath())
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, types.ErrorResponse{
			Success: false,
			Message: "too many requests",
			Error: &types.ErrorDetail{
				Timestamp: time.Now().Format(time.RFC3339),
				Path:      c.Request.URL.Path,
				Code:      http.StatusTooManyRequests,
			},
		})
	}
}

// Cleanup drops visitors idle for longer than the idle window
func (rl *RateLimiter) Cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := rl.Cleanup(now); n > 0 {
					rl.logger.Debug().Int("removed", n).Msg("Idle rate limiters removed")
				}
			}
		}
	}()
}

