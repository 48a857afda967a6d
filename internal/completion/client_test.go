package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap/zaptest"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "gen-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	return NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     url,
		Model:       "test-model",
		MaxTokens:   256,
		Temperature: 0.3,
		Timeout:     timeout,
		Referer:     "https://example.com",
		Title:       "Travel Concierge",
	}, zaptest.NewLogger(t))
}

func TestClient_Complete(t *testing.T) {
	var got struct {
		Model       string              `json:"model"`
		Messages    []map[string]string `json:"messages"`
		MaxTokens   int                 `json:"max_tokens"`
		Temperature float64             `json:"temperature"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.com", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Travel Concierge", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("Azerbaijan'ı öneririm.\nCOUNTRIES: [10]"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, time.Second)
	assert.True(t, client.Configured())

	reply, err := client.Complete(context.Background(), []models.ChatMessage{
		{Role: models.RoleSystem, Content: "rules"},
		{Role: models.RoleUser, Content: "Azerbaijan hakkında bilgi ver"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Azerbaijan'ı öneririm.\nCOUNTRIES: [10]", reply)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 0.0001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0]["role"])
	assert.Equal(t, "user", got.Messages[1]["role"])
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := client.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Less(t, elapsed, time.Second)
}

func TestClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url, time.Second)
	_, err := client.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.NotEmpty(t, cerr.Details())
}

func TestClient_UpstreamStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"structured error", `{"error":{"message":"rate limited","type":"rate_limit","code":429}}`},
		{"plain body", `upstream exploded`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, time.Second)
			_, err := client.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUpstreamStatus), "got %v", err)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, http.StatusTooManyRequests, cerr.StatusCode)
		})
	}
}

func TestClient_EmptyResponse(t *testing.T) {
	for _, body := range []map[string]any{
		completionBody("   "),
		{"id": "gen-2", "object": "chat.completion", "choices": []any{}},
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(body)
		}))

		client := newTestClient(t, server.URL, time.Second)
		_, err := client.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
		server.Close()

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyResponse), "got %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{}, zaptest.NewLogger(t))
	assert.False(t, client.Configured())
	assert.Equal(t, DefaultModel, client.model)
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, DefaultMaxTokens, client.maxTokens)
}
