package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/infrastructure/auth"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/interfaces/http/handler"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

type noConnections struct{}

func (noConnections) FindByID(context.Context, int64) (*connection.Connection, error) {
	return nil, connection.ErrNotFound
}
func (noConnections) FindAll(context.Context) ([]connection.Connection, error)    { return nil, nil }
func (noConnections) FindActive(context.Context) ([]connection.Connection, error) { return nil, nil }
func (noConnections) Save(context.Context, *connection.Connection) error          { return nil }
func (noConnections) Delete(context.Context, int64) error                         { return connection.ErrNotFound }

func newTestEngine(t *testing.T) (http.Handler, *auth.JWTService) {
	t.Helper()
	tokens := auth.NewJWTService(config.JWTConfig{Secret: "test-secret", Issuer: "marketsync", TokenExpiration: time.Hour})
	engine, err := NewEngine(EngineConfig{
		Tokens:         tokens,
		Tracing:        middleware.TracingConfig{Enabled: false},
		Security:       middleware.DefaultSecurityConfig(),
		MaxBodySize:    1 << 20,
		WebhookLimiter: middleware.NewRateLimiter(0, 1, time.Minute),
	}, Handlers{
		Connections: handler.NewConnectionHandler(noConnections{}),
		Orders:      handler.NewOrderHandler(nil),
		Webhooks:    handler.NewWebhookHandler(handler.WebhookConfig{Secret: "hook"}),
		System:      handler.NewSystemHandler("test"),
	})
	require.NoError(t, err)
	return engine, tokens
}

func request(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func mint(t *testing.T, tokens *auth.JWTService, scopes ...string) string {
	t.Helper()
	tok, err := tokens.GenerateToken("ops", scopes, 0)
	require.NoError(t, err)
	return tok.AccessToken
}

func TestNewEngine(t *testing.T) {
	engine, tokens := newTestEngine(t)

	t.Run("health is public", func(t *testing.T) {
		w := request(t, engine, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("api requires a token", func(t *testing.T) {
		w := request(t, engine, http.MethodGet, "/api/v1/connections", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("read scope may list", func(t *testing.T) {
		w := request(t, engine, http.MethodGet, "/api/v1/connections", mint(t, tokens, auth.ScopeReadOnly))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("writes need the admin scope", func(t *testing.T) {
		w := request(t, engine, http.MethodDelete, "/api/v1/connections/1", mint(t, tokens, auth.ScopeReadOnly))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = request(t, engine, http.MethodDelete, "/api/v1/connections/1", mint(t, tokens, auth.ScopeAdmin))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unregistered handlers have no routes", func(t *testing.T) {
		w := request(t, engine, http.MethodGet, "/api/v1/jobs", mint(t, tokens, auth.ScopeAdmin))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("webhooks are rate limited and need no token", func(t *testing.T) {
		w := request(t, engine, http.MethodPost, "/webhooks/storefront", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = request(t, engine, http.MethodPost, "/webhooks/storefront", "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})
}
