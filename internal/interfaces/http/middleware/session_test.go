package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sessionEngine(captured *shared.SessionContext) *gin.Engine {
	engine := gin.New()
	engine.Use(Session(DefaultSessionConfig()))
	handler := func(c *gin.Context) {
		if sc, ok := GetSession(c); ok {
			*captured = sc
		}
		c.Status(http.StatusNoContent)
	}
	engine.GET("/api/v1/allocations", handler)
	engine.GET("/health", handler)
	return engine
}

func TestSession_AttachesContext(t *testing.T) {
	clientID, orgID, userID := uuid.New(), uuid.New(), uuid.New()
	var got shared.SessionContext

	req := httptest.NewRequest(http.MethodGet, "/api/v1/allocations", nil)
	req.Header.Set(ClientHeaderKey, clientID.String())
	req.Header.Set(OrganizationHeaderKey, orgID.String())
	req.Header.Set(UserHeaderKey, userID.String())
	req.Header.Set(LanguageHeaderKey, "de-DE,de;q=0.9,en;q=0.8")
	w := httptest.NewRecorder()
	sessionEngine(&got).ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, clientID, got.ClientID)
	assert.Equal(t, orgID, got.OrganizationID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "de_DE", got.Language)
}

func TestSession_DefaultsOptionalHeaders(t *testing.T) {
	clientID := uuid.New()
	var got shared.SessionContext

	req := httptest.NewRequest(http.MethodGet, "/api/v1/allocations", nil)
	req.Header.Set(ClientHeaderKey, clientID.String())
	w := httptest.NewRecorder()
	sessionEngine(&got).ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, uuid.Nil, got.OrganizationID)
	assert.Equal(t, uuid.Nil, got.UserID)
	assert.Equal(t, "en_US", got.Language)
}

func TestSession_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "missing client", headers: map[string]string{}},
		{name: "nil client", headers: map[string]string{ClientHeaderKey: uuid.Nil.String()}},
		{name: "malformed client", headers: map[string]string{ClientHeaderKey: "acme"}},
		{name: "malformed org", headers: map[string]string{ClientHeaderKey: uuid.NewString(), OrganizationHeaderKey: "hq"}},
		{name: "malformed user", headers: map[string]string{ClientHeaderKey: uuid.NewString(), UserHeaderKey: "42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got shared.SessionContext
			req := httptest.NewRequest(http.MethodGet, "/api/v1/allocations", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			sessionEngine(&got).ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeSessionRequired, resp.Error.Code)
			assert.Equal(t, uuid.Nil, got.ClientID)
		})
	}
}

func TestSession_SkipsHealth(t *testing.T) {
	var got shared.SessionContext
	w := httptest.NewRecorder()
	sessionEngine(&got).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLanguageOf(t *testing.T) {
	assert.Equal(t, "fr_FR", languageOf("fr-FR", "en_US"))
	assert.Equal(t, "es", languageOf("es;q=0.8", "en_US"))
	assert.Equal(t, "en_US", languageOf("*", "en_US"))
	assert.Equal(t, "en_US", languageOf("", "en_US"))
}
