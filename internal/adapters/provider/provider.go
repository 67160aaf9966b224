// Package provider implements the Provider Adapter: URL, request body,
// and header shaping for the streaming chat completion registry. Ported
// from original_source's commands/llm.rs (PROVIDER_CONFIGS, build_url,
// build_stream_request_body, build_headers), generalized to Go's
// http.Header and map[string]any JSON body shape.
package provider

import (
	"fmt"
	"strings"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
)

// authMode is how a provider authenticates its requests.
type authMode string

const (
	authBearer  authMode = "bearer"
	authXAPIKey authMode = "x-api-key"
)

type registryEntry struct {
	id         string
	defaultURL string
	auth       authMode
}

// registry is the provider table, ported verbatim from
// original_source's PROVIDER_CONFIGS.
var registry = []registryEntry{
	{"openai", "https://api.openai.com/v1/chat/completions", authBearer},
	{"anthropic", "https://api.anthropic.com/v1/messages", authXAPIKey},
	{"google", "https://generativelanguage.googleapis.com/v1beta/models/", authBearer},
	{"azure", "", authBearer},
	{"mistral", "https://api.mistral.ai/v1/chat/completions", authBearer},
	{"moonshot", "https://api.moonshot.cn/v1/chat/completions", authBearer},
	{"zhipu", "https://open.bigmodel.cn/api/paas/v4/chat/completions", authBearer},
	{"aliyun", "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions", authBearer},
	{"baidu", "https://qianfan.baidubce.com/v2/chat/completions", authBearer},
	{"doubao", "https://ark.cn-beijing.volces.com/api/v3/chat/completions", authBearer},
	{"deepseek", "https://api.deepseek.com/v1/chat/completions", authBearer},
	{"siliconflow", "https://api.siliconflow.cn/v1/chat/completions", authBearer},
	{"minimax", "https://api.minimax.chat/v1/text/chatcompletion_v2", authBearer},
	{"yi", "https://api.lingyiwanwu.com/v1/chat/completions", authBearer},
	{"custom", "", authBearer},
}

func lookup(provider string) (registryEntry, bool) {
	for _, e := range registry {
		if e.id == provider {
			return e, true
		}
	}
	return registryEntry{}, false
}

// Adapter implements ports.ProviderAdapter.
type Adapter struct{}

// New creates an Adapter.
func New() *Adapter { return &Adapter{} }

// URL builds the streaming endpoint for provider/model. customBaseURL is
// consulted for azure and custom, and as a generic fallback for any
// provider absent from the registry.
func (a *Adapter) URL(provider, model, customBaseURL string) (string, error) {
	switch provider {
	case "google":
		return fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:streamGenerateContent?alt=sse", model), nil
	case "azure":
		if customBaseURL == "" {
			return "", fmt.Errorf("%w: azure requires a base url", domerrors.ErrInvalidProvider)
		}
		return customBaseURL, nil
	case "custom":
		if customBaseURL == "" {
			return "", fmt.Errorf("%w: custom provider requires a base url", domerrors.ErrInvalidProvider)
		}
		return strings.TrimSuffix(customBaseURL, "/") + "/chat/completions", nil
	}

	if entry, ok := lookup(provider); ok {
		return entry.defaultURL, nil
	}
	if customBaseURL != "" {
		return strings.TrimSuffix(customBaseURL, "/") + "/chat/completions", nil
	}
	return "", fmt.Errorf("%w: %s", domerrors.ErrInvalidProvider, provider)
}

// Body shapes the streaming request payload for provider/model from the
// conversation's messages.
func (a *Adapter) Body(provider, model string, messages []entities.ChatMessage) (map[string]any, error) {
	switch provider {
	case "anthropic":
		return anthropicBody(model, messages), nil
	case "google":
		return googleBody(messages), nil
	default:
		return defaultBody(model, messages), nil
	}
}

func anthropicBody(model string, messages []entities.ChatMessage) map[string]any {
	var systemMsg string
	var msgs []map[string]any
	for _, m := range messages {
		if m.Role == "system" {
			systemMsg = m.Content
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, map[string]any{"role": role, "content": m.Content})
	}

	body := map[string]any{
		"model":      model,
		"messages":   msgs,
		"max_tokens": 4096,
		"stream":     true,
	}
	if systemMsg != "" {
		body["system"] = systemMsg
	}
	return body
}

func googleBody(messages []entities.ChatMessage) map[string]any {
	var contents []map[string]any
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": m.Content}},
		})
	}

	return map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     0.7,
			"maxOutputTokens": 4096,
		},
	}
}

func defaultBody(model string, messages []entities.ChatMessage) map[string]any {
	msgs := make([]map[string]any, len(messages))
	for i, m := range messages {
		msgs[i] = map[string]any{"role": m.Role, "content": m.Content}
	}
	return map[string]any{
		"model":       model,
		"messages":    msgs,
		"temperature": 0.7,
		"stream":      true,
	}
}

// Headers builds the auth and content headers for provider.
func (a *Adapter) Headers(provider, apiKey string) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "text/event-stream",
	}

	if apiKey == "" {
		return nil, domerrors.ErrMissingAPIKey
	}

	if provider == "anthropic" {
		headers["x-api-key"] = apiKey
		headers["anthropic-version"] = "2023-06-01"
	} else {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return headers, nil
}
