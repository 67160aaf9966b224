package vectordb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPackUnpackVectorRoundTrip(t *testing.T) {
	in := []float32{1.5, -2.25, 0, 3.125}
	out := unpackVector(packVector(in))
	assert.Equal(t, in, out)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestInsertAndSearchTopK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := []entities.Vector{
		{ChunkID: "c1", DocumentID: "d1", KBID: "kb1", Data: []float32{1, 0, 0}},
		{ChunkID: "c2", DocumentID: "d1", KBID: "kb1", Data: []float32{0, 1, 0}},
		{ChunkID: "c3", DocumentID: "d1", KBID: "kb1", Data: []float32{0.9, 0.1, 0}},
	}
	contents := map[string]string{"c1": "one", "c2": "two", "c3": "three"}
	require.NoError(t, s.Insert(ctx, "kb1", vectors, contents))

	matches, err := s.Search(ctx, "kb1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c1", matches[0].ChunkID)
	assert.Equal(t, "c3", matches[1].ChunkID)
	assert.Equal(t, "one", matches[0].Content)
}

func TestSearchStableTiebreakByInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := []entities.Vector{
		{ChunkID: "first", DocumentID: "d1", KBID: "kb1", Data: []float32{1, 0}},
		{ChunkID: "second", DocumentID: "d1", KBID: "kb1", Data: []float32{1, 0}},
	}
	require.NoError(t, s.Insert(ctx, "kb1", vectors, nil))

	matches, err := s.Search(ctx, "kb1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "first", matches[0].ChunkID)
	assert.Equal(t, "second", matches[1].ChunkID)
}

func TestDeleteByDocumentAndDrop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := []entities.Vector{
		{ChunkID: "c1", DocumentID: "d1", KBID: "kb1", Data: []float32{1, 0}},
		{ChunkID: "c2", DocumentID: "d2", KBID: "kb1", Data: []float32{0, 1}},
	}
	require.NoError(t, s.Insert(ctx, "kb1", vectors, nil))

	require.NoError(t, s.DeleteByDocument(ctx, "kb1", "d1"))
	matches, err := s.Search(ctx, "kb1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c2", matches[0].ChunkID)

	require.NoError(t, s.Drop(ctx, "kb1"))
	matches, err = s.Search(ctx, "kb1", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
