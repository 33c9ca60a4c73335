package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/llm"
)

func completion(content string) map[string]any {
	choices := []any{}
	if content != "" {
		choices = append(choices, map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		})
	}
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": choices,
	}
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("a draft"))
	}))
	defer srv.Close()

	g := New("gpt-4o", option.WithBaseURL(srv.URL), option.WithAPIKey("test-key"), option.WithMaxRetries(0))
	out, err := g.Generate(context.Background(), llm.Request{
		System:      "be an architect",
		User:        "describe",
		Temperature: 0.7,
		MaxTokens:   16000,
	})
	require.NoError(t, err)
	assert.Equal(t, "a draft", out)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	assert.InDelta(t, 16000, body["max_tokens"], 0)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(""))
	}))
	defer srv.Close()

	g := New("gpt-4o", option.WithBaseURL(srv.URL), option.WithAPIKey("k"), option.WithMaxRetries(0))
	_, err := g.Generate(context.Background(), llm.Request{User: "x"})
	require.EqualError(t, err, "openai: empty choices")
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := New("gpt-4o", option.WithBaseURL(srv.URL), option.WithAPIKey("k"), option.WithMaxRetries(0))
	_, err := g.Generate(context.Background(), llm.Request{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion")
}

func TestNewFromConfig(t *testing.T) {
	t.Setenv("CARTA_TEST_KEY", "k")

	_, err := NewFromConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4o", APIKeyEnv: "CARTA_TEST_KEY"})
	require.NoError(t, err)

	_, err = NewFromConfig(config.LLMConfig{
		Provider:   "azure-openai",
		Model:      "docs-deployment",
		Endpoint:   "https://example.openai.azure.com",
		APIVersion: "2024-06-01",
		APIKeyEnv:  "CARTA_TEST_KEY",
	})
	require.NoError(t, err)

	_, err = NewFromConfig(config.LLMConfig{Provider: "openai", Model: "gpt-4o", APIKeyEnv: "CARTA_UNSET_KEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CARTA_UNSET_KEY")

	_, err = NewFromConfig(config.LLMConfig{Provider: "openai", APIKeyEnv: "CARTA_TEST_KEY"})
	require.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, llm.Names(), "openai")
	assert.Contains(t, llm.Names(), "azure-openai")
}
