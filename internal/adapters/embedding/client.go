// Package embedding implements the remote Embedding Client: a static
// provider/model dimension table and an HTTP client that posts batches of
// text and parses the ordered data[].embedding array back out. Grounded
// on the teacher's OllamaAdapter (internal/adapters/embedding/ollama.go)
// generalized to the provider table in original_source's embedding.rs.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/rs/zerolog/log"
)

// dimensionTable is the static (provider, model) -> dimension lookup
// consulted before ingestion to stamp a KnowledgeBase's embedding_dim,
// ported from original_source's get_embedding_dimension.
var dimensionTable = map[string]map[string]int{
	"openai": {
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	},
	"zhipu": {
		"embedding-2": 1024,
	},
	"siliconflow": {
		"BAAI/bge-large-zh-v1.5": 1024,
	},
}

// urlTable holds the embeddings endpoint per provider; providers absent
// here fall back to the OpenAI-compatible default.
var urlTable = map[string]string{
	"openai":      "https://api.openai.com/v1/embeddings",
	"zhipu":       "https://open.bigmodel.cn/api/paas/v4/embeddings",
	"siliconflow": "https://api.siliconflow.cn/v1/embeddings",
}

// Client implements ports.EmbeddingService over HTTP.
type Client struct {
	httpClient *http.Client
}

// New creates an embedding Client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Dimension returns the static declared dimension for provider/model.
func (c *Client) Dimension(provider, model string) (int, bool) {
	models, ok := dimensionTable[provider]
	if !ok {
		return 1536, false
	}
	dim, ok := models[model]
	if !ok {
		return 1536, false
	}
	return dim, true
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed posts texts in one batch request and returns vectors in input order.
func (c *Client) Embed(ctx context.Context, provider, model, apiKey string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	url := embeddingsURL(provider)

	body := embedRequest{Model: model, Input: texts}
	if provider != "zhipu" {
		body.EncodingFormat = "float"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", domerrors.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", domerrors.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	log.Debug().Str("provider", provider).Str("model", model).Int("texts", len(texts)).Msg("sending embedding request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", domerrors.ErrRequest, provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: %s", domerrors.ErrEmbedding, &domerrors.APIError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domerrors.ErrEmbedding, err)
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		vectors[i] = item.Embedding
	}

	log.Debug().Int("vectors", len(vectors)).Msg("embedding response parsed")
	return vectors, nil
}

func embeddingsURL(provider string) string {
	if url, ok := urlTable[provider]; ok {
		return url
	}
	return urlTable["openai"]
}
