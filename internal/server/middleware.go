package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/auth"
	"github.com/schoolhub-dev/schoolhub/internal/identity"
	"github.com/schoolhub-dev/schoolhub/internal/metrics"
	"github.com/schoolhub-dev/schoolhub/internal/roles"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// JWTAuthMiddleware validates access tokens and rejects revoked sessions
func JWTAuthMiddleware(identitySvc *identity.Service, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			var message string
			switch err {
			case ErrMissingAuthHeader:
				message = "Missing authorization header"
			case ErrInvalidAuthFormat:
				message = "Invalid authorization header format"
			case ErrEmptyToken:
				message = "Empty token"
			}
			respondWithError(c, log, http.StatusUnauthorized, err, message)
			return
		}

		user, session, err := identitySvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				respondWithError(c, log, http.StatusUnauthorized, err, "Token expired")
				return
			}
			respondWithError(c, log, http.StatusUnauthorized, ErrInvalidToken, "Invalid or expired token")
			return
		}

		setSession(c, &auth.SessionData{
			UserID:    user.ID,
			Email:     user.Email,
			SessionID: session.ID,
			Roles:     user.Roles,
		})

		c.Next()
	}
}

// AdminOnlyMiddleware resolves the admin flag for the authenticated user and
// rejects everyone else
func AdminOnlyMiddleware(resolver *roles.Resolver, m *metrics.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, exists := GetSessionData(c)
		if !exists {
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
			return
		}

		decision := resolver.Resolve(c.Request.Context(), roles.Subject{
			ID:    sessionData.UserID,
			Email: sessionData.Email,
			Roles: sessionData.Roles,
		})
		m.AdminDecisions.WithLabelValues(string(decision.Source), strconv.FormatBool(decision.IsAdmin)).Inc()

		if !decision.IsAdmin {
			respondWithError(c, log, http.StatusForbidden, errors.New("not admin"), "Admin access required")
			return
		}

		sessionData.IsAdmin = true
		c.Next()
	}
}
