package usecases

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/baiyu-ai/ragspace/internal/adapters/splitter"
	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	text string
	err  error
}

func (f *fakeParser) Parse(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type countingKeywordIndex struct {
	fakeKeywordIndex
	indexed []entities.Chunk
}

func (c *countingKeywordIndex) Index(ctx context.Context, chunk entities.Chunk) error {
	c.indexed = append(c.indexed, chunk)
	return nil
}

type countingVectorStore struct {
	fakeVectorStore
	inserted []entities.Vector
}

func (c *countingVectorStore) Insert(ctx context.Context, kbID string, vectors []entities.Vector, contents map[string]string) error {
	c.inserted = append(c.inserted, vectors...)
	return nil
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_HappyPath(t *testing.T) {
	meta := newFakeMetadataStore()
	require.NoError(t, meta.CreateKnowledgeBase(context.Background(), &entities.KnowledgeBase{
		ID: "kb1", Name: "test", EmbeddingProvider: "openai", EmbeddingModel: "m",
		EmbeddingDim: 3, ChunkSize: 1000, ChunkOverlap: 200, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	kw := &countingKeywordIndex{}
	vs := &countingVectorStore{}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	parser := &fakeParser{text: "alpha. beta. gamma. delta."}
	split := splitter.New()

	ing := NewIngestor(meta, vs, kw, emb, parser, split)
	path := writeTempFile(t, "doc.txt", "alpha. beta. gamma. delta.")

	doc, err := ing.Ingest(context.Background(), "kb1", path, "key")
	require.NoError(t, err)
	assert.Equal(t, entities.DocumentCompleted, doc.Status)
	assert.NotZero(t, doc.ChunkCount)
	assert.NotEmpty(t, kw.indexed)
	assert.NotEmpty(t, vs.inserted)

	storedDoc, err := meta.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DocumentCompleted, storedDoc.Status)
}

func TestIngest_ParseFailureMarksError(t *testing.T) {
	meta := newFakeMetadataStore()
	require.NoError(t, meta.CreateKnowledgeBase(context.Background(), &entities.KnowledgeBase{
		ID: "kb1", Name: "test", EmbeddingProvider: "openai", EmbeddingModel: "m",
		EmbeddingDim: 3, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	parser := &fakeParser{err: domerrors.ErrDocumentParse}
	ing := NewIngestor(meta, &countingVectorStore{}, &countingKeywordIndex{}, &fakeEmbedder{vector: []float32{1, 0, 0}}, parser, splitter.New())
	path := writeTempFile(t, "broken.pdf", "whatever")

	_, err := ing.Ingest(context.Background(), "kb1", path, "key")
	require.Error(t, err)

	var storedDoc *entities.Document
	for _, d := range meta.docs {
		storedDoc = d
	}
	require.NotNil(t, storedDoc)
	assert.Equal(t, entities.DocumentError, storedDoc.Status)
	assert.NotEmpty(t, storedDoc.ErrorMessage)
}

func TestIngest_DimensionMismatchRejected(t *testing.T) {
	meta := newFakeMetadataStore()
	require.NoError(t, meta.CreateKnowledgeBase(context.Background(), &entities.KnowledgeBase{
		ID: "kb1", Name: "test", EmbeddingProvider: "openai", EmbeddingModel: "m",
		EmbeddingDim: 1536, ChunkSize: 1000, ChunkOverlap: 200, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	parser := &fakeParser{text: "some reasonable amount of ingestible content here"}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}} // only 3 dims, base expects 1536
	ing := NewIngestor(meta, &countingVectorStore{}, &countingKeywordIndex{}, emb, parser, splitter.New())
	path := writeTempFile(t, "doc.txt", "content")

	_, err := ing.Ingest(context.Background(), "kb1", path, "key")
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrEmbedding)
}

func TestIngest_PreviewTruncatesOnRuneBoundary(t *testing.T) {
	meta := newFakeMetadataStore()
	require.NoError(t, meta.CreateKnowledgeBase(context.Background(), &entities.KnowledgeBase{
		ID: "kb1", Name: "test", EmbeddingProvider: "openai", EmbeddingModel: "m",
		EmbeddingDim: 3, ChunkSize: 1000, ChunkOverlap: 200, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	// Multibyte content: a naive byte-slice truncation at previewLength
	// would cut mid-rune and produce invalid UTF-8.
	content := strings.Repeat("知识库", 300)
	parser := &fakeParser{text: content}
	ing := NewIngestor(meta, &countingVectorStore{}, &countingKeywordIndex{}, &fakeEmbedder{vector: []float32{1, 0, 0}}, parser, splitter.New())
	path := writeTempFile(t, "doc.txt", content)

	doc, err := ing.Ingest(context.Background(), "kb1", path, "key")
	require.NoError(t, err)

	storedDoc, err := meta.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(storedDoc.ContentPreview))
	assert.Equal(t, previewLength, len([]rune(storedDoc.ContentPreview)))
}

func TestIngest_DeleteRemovesDocumentRecord(t *testing.T) {
	meta := newFakeMetadataStore()
	meta.docs["d1"] = &entities.Document{ID: "d1", KBID: "kb1"}
	require.NoError(t, meta.CreateKnowledgeBase(context.Background(), &entities.KnowledgeBase{
		ID: "kb1", DocumentCount: 1, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	kw := &countingKeywordIndex{}
	vs := &countingVectorStore{}
	ing := NewIngestor(meta, vs, kw, &fakeEmbedder{vector: []float32{1}}, &fakeParser{}, splitter.New())

	require.NoError(t, ing.Delete(context.Background(), "kb1", "d1"))
	_, ok := meta.docs["d1"]
	assert.False(t, ok)
}
