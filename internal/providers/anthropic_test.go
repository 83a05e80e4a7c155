package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropic(t *testing.T, h http.HandlerFunc) *Anthropic {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	a, err := NewAnthropic("claude-test", Options{APIKey: "key", BaseURL: server.URL + "/", HTTPClient: server.Client()})
	require.NoError(t, err)
	return a
}

func TestAnthropic_Complete(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.EqualValues(t, 4096, body["max_tokens"])
		system := body["system"].([]any)
		assert.Equal(t, "be brief", system[0].(map[string]any)["text"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)
	})

	resp, err := a.Complete(context.Background(), Request{SystemPrompt: "be brief", UserPrompt: "doc"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, "anthropic", a.Name())
}

func TestAnthropic_AuthError(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})
	_, err := a.Complete(context.Background(), Request{UserPrompt: "x"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestAnthropic_EmptyContent(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`)
	})
	_, err := a.Complete(context.Background(), Request{UserPrompt: "x"})
	assert.ErrorContains(t, err, "empty text content")
}

func TestNewAnthropic_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropic("claude", Options{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}
