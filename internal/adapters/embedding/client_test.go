package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_EmptyInputNoNetworkCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New()
	urlTable["openai"] = srv.URL
	defer func() { urlTable["openai"] = "https://api.openai.com/v1/embeddings" }()

	vecs, err := c.Embed(context.Background(), "openai", "text-embedding-3-small", "key", nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.False(t, called)
}

func TestEmbed_OrderedVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{1, 0, 0}},
				{"embedding": []float32{0, 1, 0}},
			},
		})
	}))
	defer srv.Close()

	urlTable["openai"] = srv.URL
	defer func() { urlTable["openai"] = "https://api.openai.com/v1/embeddings" }()

	c := New()
	vecs, err := c.Embed(context.Background(), "openai", "text-embedding-3-small", "key", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1, 0}, vecs[1])
}

func TestEmbed_NonSuccessReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	urlTable["openai"] = srv.URL
	defer func() { urlTable["openai"] = "https://api.openai.com/v1/embeddings" }()

	c := New()
	_, err := c.Embed(context.Background(), "openai", "text-embedding-3-small", "key", []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrEmbedding)
}

func TestDimension_KnownAndUnknown(t *testing.T) {
	c := New()
	dim, ok := c.Dimension("openai", "text-embedding-3-small")
	assert.True(t, ok)
	assert.Equal(t, 1536, dim)

	_, ok = c.Dimension("unknown", "model")
	assert.False(t, ok)
}
