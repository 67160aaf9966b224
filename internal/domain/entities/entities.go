// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// DocumentStatus is the lifecycle state of a Document.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentError      DocumentStatus = "error"
)

// RetrievalMode selects how the Retriever scores candidate chunks.
type RetrievalMode string

const (
	ModeVector  RetrievalMode = "vector"
	ModeKeyword RetrievalMode = "keyword"
	ModeHybrid  RetrievalMode = "hybrid"
)

// KnowledgeBase is a named collection of documents under one embedding
// configuration. The embedding dimension is immutable once set.
type KnowledgeBase struct {
	ID                string
	Name              string
	Description       string
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDim      int
	ChunkSize         int
	ChunkOverlap      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DocumentCount     int
}

// Document is a source file ingested into a KnowledgeBase.
type Document struct {
	ID             string
	KBID           string
	Filename       string
	FileType       string
	FileSize       int64
	FileHash       string
	ContentPreview string
	ChunkCount     int
	Status         DocumentStatus
	ErrorMessage   string
	CreatedAt      time.Time
}

// Chunk is a contiguous text window extracted from a Document, the unit
// of embedding and retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	KBID       string
	Content    string
	ChunkIndex int
	TokenCount int
	CreatedAt  time.Time
}

// Vector is the dense embedding for a Chunk, stored as a little-endian
// packed sequence of float32 values.
type Vector struct {
	ChunkID    string
	DocumentID string
	KBID       string
	Data       []float32
}

// RetrievedChunk is a Chunk enriched with retrieval metadata and scores.
type RetrievedChunk struct {
	Chunk              Chunk
	Score              float64
	VectorScore        *float64
	KeywordScore       *float64
	DocumentFilename   string
}

// RetrievalRequest parametrizes a Retriever query.
type RetrievalRequest struct {
	KBID                 string
	Query                string
	TopK                 int
	Mode                 RetrievalMode
	SimilarityThreshold  float64
}

// RetrievalResult is the outcome of a Retriever query.
type RetrievalResult struct {
	Query       string
	Chunks      []RetrievedChunk
	TotalChunks int
}

// ChatMessage is a single turn in a ChatSession.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string // "system" | "user" | "assistant"
	Content   string
	Timestamp time.Time
	Error     string
}

// ChatSession groups an ordered list of messages under one provider/model.
type ChatSession struct {
	ID        string
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StreamChunk is an incremental event emitted while a chat response streams in.
type StreamChunk struct {
	SessionID string
	MessageID string
	Content   string
	Done      bool
}
