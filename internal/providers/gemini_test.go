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

func TestGemini_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "gkey", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.SystemInstruction)
		assert.Equal(t, "sys", body.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "application/json", body.GenerationConfig.ResponseMimeType)

		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"x\""},{"text":":1}"}]}}],"usageMetadata":{"totalTokenCount":9}}`)
	}))
	defer server.Close()

	g, err := NewGemini("gemini-test", Options{APIKey: "gkey", BaseURL: server.URL})
	require.NoError(t, err)
	resp, err := g.Complete(context.Background(), Request{
		SystemPrompt: "sys",
		UserPrompt:   "doc",
		Schema:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, resp.Content)
	assert.Equal(t, 9, resp.TokensUsed)
}

func TestGemini_Errors(t *testing.T) {
	status := http.StatusForbidden
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprint(w, `{"candidates":[]}`)
		}
	}))
	defer server.Close()

	g, err := NewGemini("m", Options{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), Request{UserPrompt: "x"})
	assert.True(t, IsAuthError(err))

	status = http.StatusOK
	_, err = g.Complete(context.Background(), Request{UserPrompt: "x"})
	assert.ErrorContains(t, err, "no content")
}
