package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xaenox/travel-concierge/internal/chat"
	"github.com/xaenox/travel-concierge/internal/completion"
	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

const (
	msgNotConfigured = "OpenRouter API key not configured"
	msgTimeout       = "Request timeout - AI yanıt vermedi"
	msgUnavailable   = "OpenRouter bağlantı hatası. Lütfen daha sonra tekrar deneyin."
	msgUpstream      = "AI response failed"
	msgEmpty         = "No response from AI"
	msgBadRequest    = "invalid request"
	msgRateLimited   = "rate limit exceeded"
)

type Answerer interface {
	Answer(ctx context.Context, messages []models.ChatMessage) (*chat.Response, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	answerer Answerer
	pinger   Pinger
	logger   *zap.Logger
}

func NewHandler(answerer Answerer, pinger Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		answerer: answerer,
		pinger:   pinger,
		logger:   logger,
	}
}

type ChatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Chat answers one conversation turn.
// (POST /api/chat)
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgBadRequest})
	}

	resp, err := h.answerer.Answer(c.Request().Context(), req.Messages)
	if err != nil {
		status, body := h.errorResponse(err)
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) errorResponse(err error) (int, ErrorResponse) {
	var cerr *completion.Error
	errors.As(err, &cerr)

	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		h.logger.Error("Chat request rejected", zap.Error(err))
		return http.StatusInternalServerError, ErrorResponse{Error: msgNotConfigured}
	case errors.Is(err, completion.ErrTimeout):
		return http.StatusGatewayTimeout, ErrorResponse{Error: msgTimeout}
	case errors.Is(err, completion.ErrUnavailable):
		details := err.Error()
		if cerr != nil {
			details = cerr.Details()
		}
		return http.StatusServiceUnavailable, ErrorResponse{Error: msgUnavailable, Details: details}
	case errors.Is(err, completion.ErrUpstreamStatus):
		return http.StatusInternalServerError, ErrorResponse{Error: msgUpstream}
	case errors.Is(err, completion.ErrEmptyResponse):
		return http.StatusInternalServerError, ErrorResponse{Error: msgEmpty}
	}

	h.logger.Error("Chat request failed", zap.Error(err))
	return http.StatusInternalServerError, ErrorResponse{Error: err.Error()}
}

// Health reports whether the database answers.
// (GET /healthz)
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
