package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClientGenerate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"TRUE"}]}}],
			"usageMetadata":{"promptTokenCount":30,"candidatesTokenCount":1,"totalTokenCount":31}
		}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(context.Background(), GeminiClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.True(t, client.Available())

	result, err := client.Generate(context.Background(), GenerateRequest{
		Model:           "gemini-1.5-flash",
		Input:           "Subject: Your application to Acme",
		MaxOutputTokens: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, "TRUE", result.Text)
	assert.Equal(t, 31, result.Usage.TotalTokens)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-1.5-flash:generateContent"), gotPath)
	assert.NotNil(t, gotBody["contents"])
}

func TestGeminiClientWithoutKeyIsUnavailable(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), GeminiClientConfig{})
	require.NoError(t, err)
	assert.False(t, client.Available())

	_, err = client.Generate(context.Background(), GenerateRequest{Model: "m", Input: "x"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
