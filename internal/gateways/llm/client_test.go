package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepilot/internal/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:  srv.URL,
		Defaults: Options{Model: "claude-test", MaxTokens: 100, Temperature: 0.5},
		Timeout:  time.Second,
	}, NewCredentialCache(nil, "static-key", time.Minute))
}

func TestCompleteSendsMessagesRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "static-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, 300, req.MaxTokens)
		assert.InDelta(t, 0.5, req.Temperature, 1e-9)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "hello", req.Messages[0].Content)
		}

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hi "},{"type":"text","text":"there"}],"stop_reason":"end_turn"}`))
	})

	text, err := c.Complete(context.Background(), "hello", Options{MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
}

func TestCompleteErrorsAreUpstream(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"api error body", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad prompt"}}`, "bad prompt"},
		{"plain body", http.StatusServiceUnavailable, "overloaded", "overloaded"},
		{"empty content", http.StatusOK, `{"content":[]}`, "empty response"},
		{"malformed json", http.StatusOK, `{"content":`, "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Complete(context.Background(), "hello", Options{})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindUpstream))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCompleteIsSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Complete(context.Background(), "hello", Options{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteWithoutCredential(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, NewCredentialCache(nil, "", time.Minute))

	_, err := c.Complete(context.Background(), "hello", Options{})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.ErrorIs(t, err, ErrNoCredential)
}

type stubSource struct {
	values []string
	err    error
	calls  int
}

func (s *stubSource) FetchSecret(context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v, nil
}

func TestCredentialCacheRefreshesAfterTTL(t *testing.T) {
	src := &stubSource{values: []string{"key-1", "key-2"}}
	cache := NewCredentialCache(src, "", 15*time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	key, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)

	now = now.Add(10 * time.Minute)
	key, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)
	assert.Equal(t, 1, src.calls)

	now = now.Add(6 * time.Minute)
	key, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-2", key)
	assert.Equal(t, 2, src.calls)
}

func TestCredentialCacheFallsBackToStaticKey(t *testing.T) {
	src := &stubSource{err: errors.New("access denied")}
	cache := NewCredentialCache(src, "static-key", time.Minute)

	key, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-key", key)

	// failures are not cached, so the source is asked again
	_, _ = cache.Get(context.Background())
	assert.Equal(t, 2, src.calls)
}

func TestCredentialCacheNoKeyAnywhere(t *testing.T) {
	src := &stubSource{err: errors.New("boom")}
	cache := NewCredentialCache(src, "", time.Minute)

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestCredentialCacheInvalidate(t *testing.T) {
	src := &stubSource{values: []string{"key-1", "key-2"}}
	cache := NewCredentialCache(src, "", time.Hour)

	key, _ := cache.Get(context.Background())
	assert.Equal(t, "key-1", key)

	cache.Invalidate()
	key, _ = cache.Get(context.Background())
	assert.Equal(t, "key-2", key)
}
