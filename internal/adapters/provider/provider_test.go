package provider

import (
	"testing"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_KnownProviders(t *testing.T) {
	a := New()

	url, err := a.URL("openai", "gpt-4o", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", url)

	url, err = a.URL("anthropic", "claude-3", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", url)

	url, err = a.URL("google", "gemini-pro", "")
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:streamGenerateContent?alt=sse", url)
}

func TestURL_CustomAndAzureRequireBaseURL(t *testing.T) {
	a := New()

	_, err := a.URL("custom", "m", "")
	require.Error(t, err)

	url, err := a.URL("custom", "m", "https://my-proxy.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://my-proxy.example.com/chat/completions", url)

	url, err = a.URL("azure", "m", "https://my-azure.example.com/deployments/x")
	require.NoError(t, err)
	assert.Equal(t, "https://my-azure.example.com/deployments/x", url)
}

func TestURL_UnknownProviderErrors(t *testing.T) {
	a := New()
	_, err := a.URL("not-a-real-provider", "m", "")
	assert.ErrorIs(t, err, domerrors.ErrInvalidProvider)
}

func TestBody_AnthropicExtractsSystemMessage(t *testing.T) {
	a := New()
	messages := []entities.ChatMessage{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hi"},
	}
	body, err := a.Body("anthropic", "claude-3", messages)
	require.NoError(t, err)
	assert.Equal(t, "be nice", body["system"])
	msgs := body["messages"].([]map[string]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
}

func TestBody_GoogleMapsAssistantToModel(t *testing.T) {
	a := New()
	messages := []entities.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	body, err := a.Body("google", "gemini-pro", messages)
	require.NoError(t, err)
	contents := body["contents"].([]map[string]any)
	require.Len(t, contents, 2)
	assert.Equal(t, "model", contents[1]["role"])
}

func TestBody_DefaultPassesThroughRoles(t *testing.T) {
	a := New()
	messages := []entities.ChatMessage{{Role: "user", Content: "hi"}}
	body, err := a.Body("openai", "gpt-4o", messages)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, true, body["stream"])
}

func TestHeaders_AnthropicUsesXAPIKey(t *testing.T) {
	a := New()
	headers, err := a.Headers("anthropic", "secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", headers["x-api-key"])
	assert.Equal(t, "2023-06-01", headers["anthropic-version"])
	_, hasAuth := headers["Authorization"]
	assert.False(t, hasAuth)
}

func TestHeaders_DefaultUsesBearer(t *testing.T) {
	a := New()
	headers, err := a.Headers("openai", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", headers["Authorization"])
}

func TestHeaders_MissingAPIKey(t *testing.T) {
	a := New()
	_, err := a.Headers("openai", "")
	assert.ErrorIs(t, err, domerrors.ErrMissingAPIKey)
}
