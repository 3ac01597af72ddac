package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-console-backend/internal/auth"
	"admin-console-backend/internal/config"
	"admin-console-backend/internal/handlers"
	"admin-console-backend/internal/rag"
	"admin-console-backend/internal/services"
	"admin-console-backend/internal/store/storetest"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st := storetest.New()
	cfg := &config.Config{
		JWTSecret:       testSecret,
		TokenExpiration: time.Hour,
		RAGTimeout:      time.Minute,
	}

	ragClient := rag.NewClient("http://127.0.0.1:1", time.Second)
	authSvc := services.NewAuthService(st, cfg)
	ingestSvc := services.NewIngestionService(st, ragClient, time.Minute)
	assistantSvc := services.NewAssistantService(st, rag.NewTitler(context.Background(), ""))

	return NewRouter(RouterDependencies{
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		IngestionHandler: handlers.NewIngestionHandler(ingestSvc),
		AssistantHandler: handlers.NewAssistantHandler(assistantSvc, ragClient),
		Config:           cfg,
	})
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.NewAccessToken(uuid.New(), role, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/assistant/conversations/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/conversations/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/assistant/conversations/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleMember))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadIsAdminOnly(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleMember))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/assistant/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	router := newTestRouter(t)

	tok, err := auth.NewAccessToken(uuid.New(), auth.RoleMember, testSecret, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/conversations/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
