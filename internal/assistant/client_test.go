package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.AssistantConfig{
		BaseURL:        srv.URL + "/",
		APIKey:         "key-123",
		UserID:         "user-1",
		TimeoutSeconds: 2,
	}, WithClock(func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }))
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/health", r.URL.Path)
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.Equal(t, "user-1", r.Header.Get("X-User-ID"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.Health(context.Background()))
}

func TestHealth_Non2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := c.Health(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrRemoteService))

	jErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, jErr.Details["upstream_status"])
}

func TestHealth_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(config.AssistantConfig{BaseURL: url, APIKey: "k"})
	err := c.Health(context.Background())
	require.True(t, errors.Is(err, errors.ErrRemoteService))
}

func TestUnconfigured(t *testing.T) {
	c := New(config.AssistantConfig{BaseURL: "http://127.0.0.1:1"})
	require.False(t, c.Configured())

	err := c.Health(context.Background())
	require.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = c.Analyze(context.Background(), "x", "")
	require.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = c.Sync(context.Background(), map[string]any{})
	require.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestAnalyze_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analyze", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "marcar dentista", body["content"])
		require.Equal(t, DefaultCaptureType, body["type"])
		require.Equal(t, "2026-02-03T04:05:06Z", body["timestamp"])
		require.Equal(t, "user-1", body["user_id"])

		_, _ = w.Write([]byte(`{
			"status": "success",
			"analysis": {"detected_type": "event", "priority": "alta", "category": "saude", "suggested_action": "agendar"},
			"suggestions": [{"type": "event", "message": "Agendar?", "action": "create_event"}]
		}`))
	})

	resp, err := c.Analyze(context.Background(), "marcar dentista", "")
	require.NoError(t, err)
	require.Equal(t, triage.TypeEvent, resp.Analysis.DetectedType)
	require.Equal(t, triage.PriorityAlta, resp.Analysis.Priority)
	require.Equal(t, "agendar", resp.Analysis.SuggestedAction)
	require.Len(t, resp.Suggestions, 1)
	require.Equal(t, triage.SuggestEvent, resp.Suggestions[0].Type)
}

func TestAnalyze_RejectsBadReplies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error status", `{"status":"error","message":"nope"}`},
		{"missing analysis", `{"status":"success"}`},
		{"out of vocabulary type", `{"status":"success","analysis":{"detected_type":"reminder","priority":"alta","category":"geral"}}`},
		{"out of vocabulary priority", `{"status":"success","analysis":{"detected_type":"task","priority":"high","category":"geral"}}`},
		{"bad suggestion", `{"status":"success","analysis":{"detected_type":"task","priority":"alta","category":"geral"},"suggestions":[{"type":"alarm"}]}`},
		{"malformed json", `{"status":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Analyze(context.Background(), "x", "note")
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrRemoteService))
		})
	}
}

func TestAnalyze_NilSuggestionsBecomeEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","analysis":{"detected_type":"idea","priority":"media","category":"geral"}}`))
	})
	resp, err := c.Analyze(context.Background(), "x", "")
	require.NoError(t, err)
	require.NotNil(t, resp.Suggestions)
	require.Empty(t, resp.Suggestions)
}

func TestAnalyze_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(config.AssistantConfig{BaseURL: srv.URL, APIKey: "k", TimeoutSeconds: 1})
	start := time.Now()
	_, err := c.Analyze(context.Background(), "x", "")
	require.True(t, errors.Is(err, errors.ErrRemoteService))
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestSync(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, float64(3), data["tasks"])
		require.Equal(t, "2026-02-03T04:05:06Z", body["timestamp"])
		_, _ = w.Write([]byte(`{"status":"success","message":"ok"}`))
	})

	resp, err := c.Sync(context.Background(), map[string]any{"tasks": 3})
	require.NoError(t, err)
	require.Equal(t, "success", resp.Status)
	require.Equal(t, "ok", resp.Message)
}

func TestSync_Failures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Sync(context.Background(), nil)
	require.True(t, errors.Is(err, errors.ErrRemoteService))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"quota"}`))
	})
	_, err = c.Sync(context.Background(), nil)
	require.True(t, errors.Is(err, errors.ErrRemoteService))
}
