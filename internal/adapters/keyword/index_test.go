package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyword.db")
	idx, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, entities.Chunk{
		ID: "c1", DocumentID: "d1", KBID: "kb1", Content: "the quick brown fox", ChunkIndex: 0,
	}))
	require.NoError(t, idx.Index(ctx, entities.Chunk{
		ID: "c2", DocumentID: "d1", KBID: "kb1", Content: "a lazy dog sleeps", ChunkIndex: 1,
	}))

	results, err := idx.Search(ctx, "kb1", "fox", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	found := false
	for _, r := range results {
		if r.Chunk.ID == "c1" {
			found = true
			require.NotNil(t, r.KeywordScore)
			assert.Nil(t, r.VectorScore)
		}
	}
	assert.True(t, found)
}

func TestSearchNoMatches(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, entities.Chunk{
		ID: "c1", DocumentID: "d1", KBID: "kb1", Content: "alpha beta gamma", ChunkIndex: 0,
	}))

	results, err := idx.Search(ctx, "kb1", "zzz_not_present", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByDocumentRemovesPostings(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, entities.Chunk{
		ID: "c1", DocumentID: "d1", KBID: "kb1", Content: "searchable content here", ChunkIndex: 0,
	}))
	require.NoError(t, idx.DeleteByDocument(ctx, "d1"))

	results, err := idx.Search(ctx, "kb1", "searchable", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLikeFallbackSearch(t *testing.T) {
	idx := newTestIndex(t)
	idx.ftsOK = false
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, entities.Chunk{
		ID: "c1", DocumentID: "d1", KBID: "kb1", Content: "the quick brown fox jumps", ChunkIndex: 0,
	}))

	results, err := idx.Search(ctx, "kb1", "quick fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].KeywordScore)
	assert.Equal(t, likeFallbackScore, *results[0].KeywordScore)
}
