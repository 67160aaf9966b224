package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/baiyu-ai/ragspace/internal/domain/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// previewLength is the number of characters stored as a Document's
// content_preview, per spec.md §4.8 step 5.
const previewLength = 500

// Ingestor runs the nine-step ingestion pipeline of spec.md §4.8:
// lookup base, hash + stat the file, insert a processing Document,
// parse, preview, split + persist + keyword-mirror chunks, batch embed,
// insert vectors, then mark the document completed.
// Grounded on the teacher's IngestUseCase
// (internal/domain/usecases/ingest.go) for the embed-then-store
// orchestration shape, generalized to the on-disk file pipeline of
// original_source's knowledge_base command handlers.
type Ingestor struct {
	metadata ports.MetadataStore
	vectors  ports.VectorStore
	keyword  ports.KeywordIndex
	embedder ports.EmbeddingService
	parser   ports.DocumentParser
	splitter ports.TextSplitter
}

// NewIngestor wires an Ingestor from its six ports.
func NewIngestor(metadata ports.MetadataStore, vectors ports.VectorStore, keyword ports.KeywordIndex, embedder ports.EmbeddingService, parser ports.DocumentParser, splitter ports.TextSplitter) *Ingestor {
	return &Ingestor{
		metadata: metadata,
		vectors:  vectors,
		keyword:  keyword,
		embedder: embedder,
		parser:   parser,
		splitter: splitter,
	}
}

// Ingest runs the full pipeline for one file against an existing
// knowledge base, returning the completed Document.
func (in *Ingestor) Ingest(ctx context.Context, kbID, path, apiKey string) (*entities.Document, error) {
	kb, err := in.metadata.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("looking up knowledge base: %w", err)
	}

	hash, size, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stating file: %v", domerrors.ErrDocumentParse, err)
	}
	filename := filepath.Base(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	doc := &entities.Document{
		ID:        uuid.NewString(),
		KBID:      kbID,
		Filename:  filename,
		FileType:  ext,
		FileSize:  size,
		FileHash:  hash,
		Status:    entities.DocumentProcessing,
		CreatedAt: time.Now(),
	}
	if err := in.metadata.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document record: %w", err)
	}

	content, err := in.parser.Parse(ctx, path)
	if err != nil {
		in.fail(ctx, doc, err)
		return nil, err
	}

	preview := content
	if runes := []rune(preview); len(runes) > previewLength {
		preview = string(runes[:previewLength])
	}
	if err := in.metadata.SetDocumentPreview(ctx, doc.ID, preview); err != nil {
		in.fail(ctx, doc, err)
		return nil, err
	}

	pieces := in.splitter.Split(content, kb.ChunkSize, kb.ChunkOverlap)
	if len(pieces) == 0 {
		if err := in.metadata.CompleteDocument(ctx, doc.ID, 0); err != nil {
			return nil, err
		}
		if err := in.metadata.IncrementDocumentCount(ctx, kbID, 1); err != nil {
			return nil, err
		}
		in.touchKB(ctx, kbID)
		doc.Status = entities.DocumentCompleted
		return doc, nil
	}

	chunks := make([]entities.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = entities.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			KBID:       kbID,
			Content:    text,
			ChunkIndex: i,
			TokenCount: estimateTokens(text),
			CreatedAt:  time.Now(),
		}
	}

	if err := in.metadata.CreateChunks(ctx, chunks); err != nil {
		in.fail(ctx, doc, err)
		return nil, err
	}
	for _, c := range chunks {
		if err := in.keyword.Index(ctx, c); err != nil {
			in.fail(ctx, doc, err)
			return nil, err
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := in.embedder.Embed(ctx, kb.EmbeddingProvider, kb.EmbeddingModel, apiKey, texts)
	if err != nil {
		in.fail(ctx, doc, err)
		return nil, err
	}
	if len(vecs) > 0 && kb.EmbeddingDim > 0 && len(vecs[0]) != kb.EmbeddingDim {
		err := fmt.Errorf("%w: embedding returned dimension %d, knowledge base expects %d",
			domerrors.ErrEmbedding, len(vecs[0]), kb.EmbeddingDim)
		in.fail(ctx, doc, err)
		return nil, err
	}

	vectors := make([]entities.Vector, len(chunks))
	contents := make(map[string]string, len(chunks))
	for i, c := range chunks {
		vectors[i] = entities.Vector{ChunkID: c.ID, DocumentID: doc.ID, KBID: kbID, Data: vecs[i]}
		contents[c.ID] = c.Content
	}
	if err := in.vectors.Insert(ctx, kbID, vectors, contents); err != nil {
		in.fail(ctx, doc, err)
		return nil, err
	}

	if err := in.metadata.CompleteDocument(ctx, doc.ID, len(chunks)); err != nil {
		return nil, err
	}
	if err := in.metadata.IncrementDocumentCount(ctx, kbID, 1); err != nil {
		return nil, err
	}
	in.touchKB(ctx, kbID)

	doc.Status = entities.DocumentCompleted
	doc.ChunkCount = len(chunks)
	log.Info().Str("document_id", doc.ID).Str("kb_id", kbID).Int("chunks", len(chunks)).Msg("ingestion completed")
	return doc, nil
}

// Delete removes a document and every trace of it from the vector and
// keyword indexes.
func (in *Ingestor) Delete(ctx context.Context, kbID, documentID string) error {
	if err := in.vectors.DeleteByDocument(ctx, kbID, documentID); err != nil {
		return err
	}
	if err := in.keyword.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	if err := in.metadata.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return in.metadata.IncrementDocumentCount(ctx, kbID, -1)
}

func (in *Ingestor) fail(ctx context.Context, doc *entities.Document, cause error) {
	log.Error().Err(cause).Str("document_id", doc.ID).Msg("ingestion failed")
	if err := in.metadata.UpdateDocumentStatus(ctx, doc.ID, entities.DocumentError, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to record document error status")
	}
	doc.Status = entities.DocumentError
	doc.ErrorMessage = cause.Error()
}

func (in *Ingestor) touchKB(ctx context.Context, kbID string) {
	if err := in.metadata.TouchKnowledgeBase(ctx, kbID); err != nil {
		log.Warn().Err(err).Str("kb_id", kbID).Msg("failed to bump knowledge base updated_at")
	}
}

// hashFile returns the file's sha256 hex digest and byte size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// estimateTokens approximates token count as one token per three runes,
// ported from original_source's estimate_tokens.
func estimateTokens(text string) int {
	return len([]rune(text)) / 3
}
