// Package ports defines interfaces for external dependencies.
// Clean Architecture: usecases depend on these abstractions, not concrete
// implementations. Adapters implement these interfaces.
package ports

import (
	"context"
	"io"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
)

// DocumentParser extracts normalized plain text from a file on disk.
type DocumentParser interface {
	// Parse reads path, determines its format from the extension, and
	// returns cleaned text or a DocumentParseError.
	Parse(ctx context.Context, path string) (string, error)
}

// TextSplitter segments cleaned text into overlapping chunks.
type TextSplitter interface {
	Split(text string, chunkSize, chunkOverlap int) []string
}

// EmbeddingService calls a remote embedding API and returns dense vectors
// in input order.
type EmbeddingService interface {
	// Embed returns one vector per text, using the given provider/model
	// and secret. Empty input returns empty output without a network call.
	Embed(ctx context.Context, provider, model, apiKey string, texts []string) ([][]float32, error)
	// Dimension returns the provider/model's declared embedding dimension.
	Dimension(provider, model string) (int, bool)
}

// MetadataStore owns the relational schema: knowledge bases, documents,
// chunks, chat sessions and messages.
type MetadataStore interface {
	CreateKnowledgeBase(ctx context.Context, kb *entities.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*entities.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]entities.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) error
	TouchKnowledgeBase(ctx context.Context, id string) error
	IncrementDocumentCount(ctx context.Context, kbID string, delta int) error

	CreateDocument(ctx context.Context, doc *entities.Document) error
	UpdateDocumentStatus(ctx context.Context, id string, status entities.DocumentStatus, errMsg string) error
	SetDocumentPreview(ctx context.Context, id, preview string) error
	CompleteDocument(ctx context.Context, id string, chunkCount int) error
	GetDocument(ctx context.Context, id string) (*entities.Document, error)
	ListDocuments(ctx context.Context, kbID string) ([]entities.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	CreateChunks(ctx context.Context, chunks []entities.Chunk) error
	GetChunk(ctx context.Context, id string) (*entities.Chunk, error)

	SaveMessage(ctx context.Context, msg *entities.ChatMessage) error
	GetMessages(ctx context.Context, sessionID string) ([]entities.ChatMessage, error)
	CreateSession(ctx context.Context, session *entities.ChatSession) error
	DeleteSession(ctx context.Context, id string) error
}

// VectorStore persists and scans dense vectors by knowledge base.
type VectorStore interface {
	CreateBase(ctx context.Context, kbID string, dim int) error
	Insert(ctx context.Context, kbID string, vectors []entities.Vector, contents map[string]string) error
	Search(ctx context.Context, kbID string, query []float32, topK int) ([]VectorMatch, error)
	DeleteByDocument(ctx context.Context, kbID, documentID string) error
	Drop(ctx context.Context, kbID string) error
}

// VectorMatch is one scored candidate returned from a vector scan.
type VectorMatch struct {
	ChunkID    string
	DocumentID string
	Content    string
	Score      float64
}

// KeywordIndex mirrors chunk text for full-text / substring search.
type KeywordIndex interface {
	Index(ctx context.Context, chunk entities.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, kbID, query string, topK int) ([]entities.RetrievedChunk, error)
}

// ProviderAdapter shapes provider-specific request URLs, bodies and headers.
type ProviderAdapter interface {
	URL(provider, model, customBaseURL string) (string, error)
	Body(provider, model string, messages []entities.ChatMessage) (map[string]any, error)
	Headers(provider, apiKey string) (map[string]string, error)
}

// CredentialProvider resolves a provider id to its secret API key. The
// desktop shell's credential vault implements this; the core treats it as
// an opaque, stateless lookup.
type CredentialProvider interface {
	Lookup(ctx context.Context, provider string) (string, error)
}

// StreamDecoder decodes an SSE response body into StreamChunk events.
type StreamDecoder interface {
	Decode(ctx context.Context, provider, sessionID, messageID string, body io.ReadCloser) (<-chan entities.StreamChunk, error)
}

// FileOperation classifies a FileEvent emitted by a FileWatcher.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// FileEvent is one filesystem change observed in a watched folder.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileWatcher monitors a directory and emits FileEvents for files with a
// watched extension, driving the optional watch-folder ingestion mode.
type FileWatcher interface {
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	Stop() error
}
