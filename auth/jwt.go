package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/middleware"
	"github.com/blackscorpionster/rubits/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	issuer = "rubits"
	// ClaimsKey holds the parsed *Claims in the gin context
	ClaimsKey = "claims"
)

// ErrInvalidToken is returned for tokens that fail parsing or validation
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims identifies the logged-in player
type Claims struct {
	PlayerID string `json:"player_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT middleware configuration
type JWTConfig struct {
	Secret      string
	TokenPrefix string
	// Required rejects requests without a token. Otherwise anonymous requests
	// pass through and only presented tokens are checked.
	Required bool
}

// GenerateToken issues a session token for player
func GenerateToken(secret string, player *game.Player, expiration time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(expiration)
	claims := &Claims{
		PlayerID: player.ID,
		Email:    player.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   player.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseToken validates a token and returns its claims
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWTMiddleware authenticates players. The player id is stored in the gin
// context and a game.Session on the request context.
func JWTMiddleware(config JWTConfig, logger zerolog.Logger) gin.HandlerFunc {
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer"
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if config.Required {
				logger.Warn().Str("path", c.Request.URL.Path).Msg("Missing Authorization header")
				unauthorized(c, "missing authorization header")
				return
			}
			c.Next()
			return
		}

		prefix, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || prefix != config.TokenPrefix || tokenString == "" {
			logger.Warn().Msg("Invalid Authorization header format")
			unauthorized(c, "invalid authorization header, expected: Bearer <token>")
			return
		}

		claims, err := ParseToken(config.Secret, tokenString)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to parse JWT token")
			unauthorized(c, ErrInvalidToken.Error())
			return
		}

		c.Set(middleware.PlayerIDKey, claims.PlayerID)
		c.Set(ClaimsKey, claims)

		session := &game.Session{
			PlayerID: claims.PlayerID,
			Email:    claims.Email,
			Token:    tokenString,
		}
		if claims.IssuedAt != nil {
			session.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
		c.Request = c.Request.WithContext(game.WithSession(c.Request.Context(), session))

		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{
		Success: false,
		Message: message,
		Error: &types.ErrorDetail{
			Timestamp: time.Now().Format(time.RFC3339),
			Path:      c.Request.URL.Path,
			Code:      http.StatusUnauthorized,
		},
	})
}

// GetPlayerID returns the authenticated player id, if any
func GetPlayerID(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.PlayerIDKey)
	return id, id != ""
}

// GetClaims extracts full claims from context
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claimsObj, ok := claims.(*Claims)
	return claimsObj, ok
}
