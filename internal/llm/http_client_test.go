package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_CompleteOpenAI(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(Config{
		Provider: FormatOpenAI,
		BaseURL:  srv.URL,
		Model:    "gpt-test",
		APIKey:   "test-key",
	})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
		},
		MaxTokens: 64,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Equal(t, float64(64), gotBody["max_tokens"])
}

func TestHTTPClient_CompleteAnthropic(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "plan ready"}],
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(Config{
		Provider: FormatAnthropic,
		BaseURL:  srv.URL,
		Model:    "claude-test",
		APIKey:   "test-key",
	})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "persona"},
			{Role: RoleUser, Content: "plan it"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "plan ready", resp.Content)
	assert.Equal(t, 20, resp.Usage.PromptTokens)

	// System text moves out of the messages array for anthropic.
	assert.Equal(t, "persona", gotBody["system"])
	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(Config{BaseURL: srv.URL, Model: "m", APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPClient_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(Config{BaseURL: srv.URL, Model: "m", APIKey: "k", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
}

func TestNewHTTPClient_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPClient(Config{BaseURL: "http://x", Model: ""})
	assert.Error(t, err)

	_, err = NewHTTPClient(Config{BaseURL: "", Model: "m"})
	assert.Error(t, err)

	_, err = NewHTTPClient(Config{BaseURL: "http://x", Model: "m", Provider: "palm"})
	assert.Error(t, err)
}
