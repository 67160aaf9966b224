// Package metadata implements the Metadata Store: a SQLite-backed
// relational store owning knowledge bases, documents, chunks, chat
// sessions and messages, with foreign keys cascading deletes downward.
// Grounded on the teacher's LanceDBStore (internal/adapters/vectordb/lancedb.go)
// for the sql.DB + mutex + schema-init shape, and on
// original_source/knowledge_base/db.rs's init_sqlite_tables for the schema.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.MetadataStore over a single SQLite connection,
// serializing writes behind a mutex per spec.md §5's "single writer"
// discipline.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the SQLite database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", domerrors.ErrDatabase, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS knowledge_bases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			embedding_provider TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			embedding_dim INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL DEFAULT 1000,
			chunk_overlap INTEGER NOT NULL DEFAULT 200,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			document_count INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			kb_id TEXT NOT NULL REFERENCES knowledge_bases(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size INTEGER,
			file_hash TEXT,
			content_preview TEXT,
			chunk_count INTEGER DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'processing',
			error_message TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			kb_id TEXT NOT NULL REFERENCES knowledge_bases(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			token_count INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT,
			provider TEXT,
			model TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kb_updated ON knowledge_bases(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_doc_kb ON documents(kb_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_doc ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_kb ON chunks(kb_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: initializing schema: %v", domerrors.ErrDatabase, err)
		}
	}
	return nil
}

func unixMillis(t time.Time) int64 { return t.UnixMilli() }
func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

// CreateKnowledgeBase inserts a new KnowledgeBase row.
func (s *Store) CreateKnowledgeBase(ctx context.Context, kb *entities.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases
		(id, name, description, embedding_provider, embedding_model, embedding_dim,
		 chunk_size, chunk_overlap, created_at, updated_at, document_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		kb.ID, kb.Name, kb.Description, kb.EmbeddingProvider, kb.EmbeddingModel, kb.EmbeddingDim,
		kb.ChunkSize, kb.ChunkOverlap, unixMillis(kb.CreatedAt), unixMillis(kb.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: creating knowledge base: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// GetKnowledgeBase fetches one KnowledgeBase by id.
func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (*entities.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, embedding_provider, embedding_model, embedding_dim,
		       chunk_size, chunk_overlap, created_at, updated_at, document_count
		FROM knowledge_bases WHERE id = ?`, id)

	kb := &entities.KnowledgeBase{}
	var createdAt, updatedAt int64
	err := row.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.EmbeddingProvider, &kb.EmbeddingModel,
		&kb.EmbeddingDim, &kb.ChunkSize, &kb.ChunkOverlap, &createdAt, &updatedAt, &kb.DocumentCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: knowledge base %s", domerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	kb.CreatedAt = fromMillis(createdAt)
	kb.UpdatedAt = fromMillis(updatedAt)
	return kb, nil
}

// ListKnowledgeBases returns all bases ordered by updated_at descending.
func (s *Store) ListKnowledgeBases(ctx context.Context) ([]entities.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, embedding_provider, embedding_model, embedding_dim,
		       chunk_size, chunk_overlap, created_at, updated_at, document_count
		FROM knowledge_bases ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entities.KnowledgeBase
	for rows.Next() {
		var kb entities.KnowledgeBase
		var createdAt, updatedAt int64
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.EmbeddingProvider, &kb.EmbeddingModel,
			&kb.EmbeddingDim, &kb.ChunkSize, &kb.ChunkOverlap, &createdAt, &updatedAt, &kb.DocumentCount); err != nil {
			return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
		kb.CreatedAt = fromMillis(createdAt)
		kb.UpdatedAt = fromMillis(updatedAt)
		out = append(out, kb)
	}
	return out, nil
}

// DeleteKnowledgeBase removes a base; documents/chunks cascade via FK.
func (s *Store) DeleteKnowledgeBase(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// TouchKnowledgeBase bumps updated_at to now.
func (s *Store) TouchKnowledgeBase(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE knowledge_bases SET updated_at = ? WHERE id = ?`,
		unixMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// IncrementDocumentCount adjusts document_count by delta (may be negative).
func (s *Store) IncrementDocumentCount(ctx context.Context, kbID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_bases SET document_count = document_count + ? WHERE id = ?`, delta, kbID)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// CreateDocument inserts a Document row in status=processing.
func (s *Store) CreateDocument(ctx context.Context, doc *entities.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
		(id, kb_id, filename, file_type, file_size, file_hash, content_preview,
		 chunk_count, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.KBID, doc.Filename, doc.FileType, doc.FileSize, doc.FileHash, doc.ContentPreview,
		doc.ChunkCount, string(doc.Status), doc.ErrorMessage, unixMillis(doc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: creating document: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// UpdateDocumentStatus transitions a document's status, recording an
// error message when status=error.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status entities.DocumentStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ? WHERE id = ?`, string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// SetDocumentPreview writes the first-500-character preview.
func (s *Store) SetDocumentPreview(ctx context.Context, id, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE documents SET content_preview = ? WHERE id = ?`, preview, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// CompleteDocument sets status=completed and the final chunk_count.
func (s *Store) CompleteDocument(ctx context.Context, id string, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, chunk_count = ?, error_message = NULL WHERE id = ?`,
		string(entities.DocumentCompleted), chunkCount, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// GetDocument fetches one Document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*entities.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kb_id, filename, file_type, file_size, file_hash, content_preview,
		       chunk_count, status, COALESCE(error_message, ''), created_at
		FROM documents WHERE id = ?`, id)

	doc := &entities.Document{}
	var status string
	var createdAt int64
	err := row.Scan(&doc.ID, &doc.KBID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.FileHash,
		&doc.ContentPreview, &doc.ChunkCount, &status, &doc.ErrorMessage, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document %s", domerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	doc.Status = entities.DocumentStatus(status)
	doc.CreatedAt = fromMillis(createdAt)
	return doc, nil
}

// ListDocuments returns all documents owned by kbID.
func (s *Store) ListDocuments(ctx context.Context, kbID string) ([]entities.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kb_id, filename, file_type, file_size, file_hash, content_preview,
		       chunk_count, status, COALESCE(error_message, ''), created_at
		FROM documents WHERE kb_id = ? ORDER BY created_at DESC`, kbID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entities.Document
	for rows.Next() {
		var doc entities.Document
		var status string
		var createdAt int64
		if err := rows.Scan(&doc.ID, &doc.KBID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.FileHash,
			&doc.ContentPreview, &doc.ChunkCount, &status, &doc.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
		doc.Status = entities.DocumentStatus(status)
		doc.CreatedAt = fromMillis(createdAt)
		out = append(out, doc)
	}
	return out, nil
}

// DeleteDocument removes a document; chunks cascade via FK.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// CreateChunks inserts a batch of Chunk rows in a single transaction.
func (s *Store) CreateChunks(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, kb_id, content, chunk_index, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.KBID, c.Content, c.ChunkIndex,
			c.TokenCount, unixMillis(c.CreatedAt)); err != nil {
			return fmt.Errorf("%w: inserting chunk: %v", domerrors.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// GetChunk fetches one Chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*entities.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, kb_id, content, chunk_index, token_count, created_at
		FROM chunks WHERE id = ?`, id)

	c := &entities.Chunk{}
	var createdAt int64
	err := row.Scan(&c.ID, &c.DocumentID, &c.KBID, &c.Content, &c.ChunkIndex, &c.TokenCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: chunk %s", domerrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

// SaveMessage appends a ChatMessage and bumps its session's updated_at.
// The session row must already exist; the foreign key rejects a message
// for an unknown session.
func (s *Store) SaveMessage(ctx context.Context, msg *entities.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, timestamp, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, unixMillis(msg.Timestamp), nullableString(msg.Error),
	)
	if err != nil {
		return fmt.Errorf("%w: saving message: %v", domerrors.ErrDatabase, err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		unixMillis(time.Now()), msg.SessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// GetMessages returns all messages for a session ordered by timestamp.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]entities.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, timestamp, COALESCE(error, '')
		FROM messages WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entities.ChatMessage
	for rows.Next() {
		var m entities.ChatMessage
		var ts int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &ts, &m.Error); err != nil {
			return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
		m.Timestamp = fromMillis(ts)
		out = append(out, m)
	}
	return out, nil
}

// CreateSession inserts a new ChatSession row.
func (s *Store) CreateSession(ctx context.Context, session *entities.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Title, session.Provider, session.Model,
		unixMillis(session.CreatedAt), unixMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: creating session: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// DeleteSession removes a session; messages cascade via FK.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
