package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/travel-concierge/internal/chat"
	"go.uber.org/zap/zaptest"
)

func TestServer_RateLimitsChat(t *testing.T) {
	logger := zaptest.NewLogger(t)
	handler := NewHandler(&stubAnswerer{resp: &chat.Response{Message: "ok"}}, stubPinger{}, logger)
	srv := NewServer(ServerConfig{Addr: ":0", RateLimit: 0.001, RateBurst: 1}, handler, logger)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, first.Header().Get(echo.HeaderXRequestID))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, second.Body.String())

	// health checks are not limited
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Defaults(t *testing.T) {
	srv := NewServer(ServerConfig{Addr: ":0"}, NewHandler(&stubAnswerer{}, stubPinger{}, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	assert.Equal(t, srv.cfg.WriteTimeout, srv.echo.Server.WriteTimeout)
	assert.Positive(t, srv.cfg.ShutdownTimeout)
}
