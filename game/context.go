package game

import (
	"context"
	"time"
)

type contextKey string

const sessionContextKey contextKey = "player_session"

// Session identifies the logged-in player for the duration of a request or a
// client run. It is created at login and discarded at logout; components that
// need the player receive it explicitly or through the request context.
type Session struct {
	PlayerID  string
	Email     string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// WithSession stores a session in the context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext returns the session if one is present
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	return s, ok && s != nil
}
