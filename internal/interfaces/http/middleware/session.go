package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session headers
const (
	ClientHeaderKey       = "X-Client-ID"
	OrganizationHeaderKey = "X-Org-ID"
	UserHeaderKey         = "X-User-ID"
	LanguageHeaderKey     = "Accept-Language"
)

// SessionMiddlewareConfig holds configuration for the session middleware
type SessionMiddlewareConfig struct {
	// SkipPaths are paths that don't require a session (e.g., health check)
	SkipPaths []string
	// DefaultLanguage is used when the caller sends no Accept-Language
	DefaultLanguage string
}

// DefaultSessionConfig returns default session middleware configuration
func DefaultSessionConfig() SessionMiddlewareConfig {
	return SessionMiddlewareConfig{
		SkipPaths:       []string{"/health", "/healthz", "/ready", "/api/v1/health"},
		DefaultLanguage: "en_US",
	}
}

// Session builds the shared.SessionContext every finance operation runs under
// from the request headers and attaches it to the request context.
func Session(cfg SessionMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		clientID, err := parseHeaderID(c, ClientHeaderKey)
		if err != nil || clientID == uuid.Nil {
			respondSessionRequired(c, ClientHeaderKey+" must carry the client UUID")
			return
		}
		orgID, err := parseHeaderID(c, OrganizationHeaderKey)
		if err != nil {
			respondSessionRequired(c, OrganizationHeaderKey+" is not a valid UUID")
			return
		}
		userID, err := parseHeaderID(c, UserHeaderKey)
		if err != nil {
			respondSessionRequired(c, UserHeaderKey+" is not a valid UUID")
			return
		}

		sc := shared.SessionContext{
			ClientID:       clientID,
			OrganizationID: orgID,
			UserID:         userID,
			Language:       languageOf(c.GetHeader(LanguageHeaderKey), cfg.DefaultLanguage),
		}
		ctx := shared.WithSessionContext(c.Request.Context(), sc)
		c.Request = c.Request.WithContext(ctx)

		logger.L(ctx).Debug("session attached", zap.String("language", sc.Language))
		c.Next()
	}
}

// GetSession retrieves the session attached by Session
func GetSession(c *gin.Context) (shared.SessionContext, bool) {
	return shared.SessionFromContext(c.Request.Context())
}

// parseHeaderID returns uuid.Nil for an absent header
func parseHeaderID(c *gin.Context, header string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

// languageOf picks the first tag of an Accept-Language value, e.g. "de-DE,de;q=0.9" gives "de_DE"
func languageOf(header, fallback string) string {
	first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
	first = strings.TrimSpace(strings.SplitN(first, ";", 2)[0])
	if first == "" || first == "*" {
		return fallback
	}
	return strings.ReplaceAll(first, "-", "_")
}

func respondSessionRequired(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeSessionRequired,
		message,
		logger.GetRequestID(c.Request.Context()),
	))
}
