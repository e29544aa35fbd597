package security

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
)

// SessionUserKey is the gin context key holding the authenticated user id
const SessionUserKey = "session_user_id"

// SecurityConfig holds security configuration
type SecurityConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableHSTS     bool
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 30 * time.Second,
	}
}

// CORS allows the configured browser origins to call the API
func CORS(config SecurityConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
	}

	return cors.New(corsConfig)
}

// RequestTimeout bounds the request context. Handlers observe the deadline
// through c.Request.Context().
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireContentType rejects requests whose media type is not one of allowed
func RequireContentType(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err == nil {
			for _, t := range allowed {
				if strings.EqualFold(mediaType, t) {
					c.Next()
					return
				}
			}
		}

		apperrors.Respond(c, apperrors.NewUnsupportedMediaError(
			"Content-Type must be one of "+strings.Join(allowed, ", "), mediaType), "")
	}
}

// TokenValidator resolves a session token to a user id
type TokenValidator interface {
	ValidateSessionToken(token string) (int64, error)
}

// SessionMiddleware reads an optional bearer token. Requests without one
// pass through; a present but invalid token is rejected with 401.
func SessionMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			apperrors.Respond(c, apperrors.NewUnauthorizedError("Malformed Authorization header"), "")
			return
		}

		userID, err := validator.ValidateSessionToken(strings.TrimSpace(token))
		if err != nil {
			apperrors.Respond(c, apperrors.NewUnauthorizedError("Invalid or expired session"), "")
			return
		}

		c.Set(SessionUserKey, userID)
		c.Next()
	}
}

// SessionUser returns the authenticated user id, if any
func SessionUser(c *gin.Context) (int64, bool) {
	v, ok := c.Get(SessionUserKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
