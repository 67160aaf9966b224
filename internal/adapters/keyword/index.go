// Package keyword implements the Keyword Index: an FTS5 virtual table
// primary path with a porter-stem tokenizer, falling back to wildcard
// substring matching when FTS5 is unavailable in the linked sqlite3
// build. Grounded on the teacher's LanceDBStore
// (internal/adapters/vectordb/lancedb.go) for the sql.DB + mutex shape,
// adapted to original_source's retrieval.rs search_with_fts_blocking /
// search_with_like_blocking.
package keyword

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	_ "github.com/mattn/go-sqlite3"
)

// likeFallbackScore is the fixed score attached to every LIKE-fallback
// match, since the wildcard scan carries no ranking signal.
const likeFallbackScore = 0.5

// Index implements ports.KeywordIndex, mirroring chunk content into a
// full-text index for substring/full-text search.
type Index struct {
	mu      sync.RWMutex
	db      *sql.DB
	ftsOK   bool
}

// Open creates or opens the SQLite database at path. It attempts to
// create an FTS5 virtual table; if the linked driver lacks FTS5 support
// it falls back permanently to the plain-table LIKE path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening keyword database: %v", domerrors.ErrDatabase, err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) initSchema() error {
	if _, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS keyword_chunks (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			kb_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			token_count INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("%w: initializing keyword table: %v", domerrors.ErrDatabase, err)
	}
	if _, err := i.db.Exec(`CREATE INDEX IF NOT EXISTS idx_keyword_kb ON keyword_chunks(kb_id)`); err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}

	_, err := i.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED, kb_id UNINDEXED, content, tokenize='porter'
		)`)
	i.ftsOK = err == nil
	return nil
}

// Close closes the underlying connection.
func (i *Index) Close() error { return i.db.Close() }

// Index mirrors a chunk's content into the keyword store.
func (i *Index) Index(ctx context.Context, chunk entities.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, err := i.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO keyword_chunks (chunk_id, document_id, kb_id, content, chunk_index, token_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocumentID, chunk.KBID, chunk.Content, chunk.ChunkIndex, chunk.TokenCount,
	); err != nil {
		return fmt.Errorf("%w: indexing chunk: %v", domerrors.ErrDatabase, err)
	}

	if i.ftsOK {
		if _, err := i.db.ExecContext(ctx,
			`INSERT INTO chunks_fts (chunk_id, kb_id, content) VALUES (?, ?, ?)`,
			chunk.ID, chunk.KBID, chunk.Content,
		); err != nil {
			return fmt.Errorf("%w: indexing chunk into fts: %v", domerrors.ErrDatabase, err)
		}
	}
	return nil
}

// DeleteByDocument removes every posting belonging to documentID.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.ftsOK {
		if _, err := i.db.ExecContext(ctx, `
			DELETE FROM chunks_fts WHERE chunk_id IN
			(SELECT chunk_id FROM keyword_chunks WHERE document_id = ?)`, documentID); err != nil {
			return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
	}
	if _, err := i.db.ExecContext(ctx, `DELETE FROM keyword_chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// Search runs the FTS5 path when available, otherwise the wildcard LIKE
// fallback, per spec.md §4.6.
func (i *Index) Search(ctx context.Context, kbID, query string, topK int) ([]entities.RetrievedChunk, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.ftsOK {
		return i.searchFTS(ctx, kbID, query, topK)
	}
	return i.searchLike(ctx, kbID, query, topK)
}

func (i *Index) searchFTS(ctx context.Context, kbID, query string, topK int) ([]entities.RetrievedChunk, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	matchExpr := strings.Join(terms, " OR ")

	rows, err := i.db.QueryContext(ctx, `
		SELECT kc.chunk_id, kc.document_id, kc.kb_id, kc.content, kc.chunk_index, kc.token_count, bm25(chunks_fts)
		FROM chunks_fts f
		JOIN keyword_chunks kc ON kc.chunk_id = f.chunk_id
		WHERE f.kb_id = ? AND chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, kbID, matchExpr, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: fts search: %v", domerrors.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entities.RetrievedChunk
	for rows.Next() {
		var c entities.Chunk
		var bm25Rank float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.KBID, &c.Content, &c.ChunkIndex, &c.TokenCount, &bm25Rank); err != nil {
			return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
		// bm25 in SQLite is a cost (lower is better); map it through a
		// decreasing logistic curve into a (0,1) relevance score so the
		// Retriever's descending sort still surfaces the engine's own
		// best match first.
		score := 1.0 / (1.0 + math.Exp(bm25Rank))
		out = append(out, entities.RetrievedChunk{
			Chunk:        c,
			Score:        score,
			KeywordScore: &score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return out, nil
}

func (i *Index) searchLike(ctx context.Context, kbID, query string, topK int) ([]entities.RetrievedChunk, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	var pattern strings.Builder
	pattern.WriteString("%")
	for _, t := range terms {
		pattern.WriteString(t)
		pattern.WriteString("%")
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, kb_id, content, chunk_index, token_count
		FROM keyword_chunks
		WHERE kb_id = ? AND content LIKE ?
		LIMIT ?`, kbID, pattern.String(), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: like search: %v", domerrors.ErrDatabase, err)
	}
	defer rows.Close()

	return scanRetrieved(rows)
}

func scanRetrieved(rows *sql.Rows) ([]entities.RetrievedChunk, error) {
	var out []entities.RetrievedChunk
	for rows.Next() {
		var c entities.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.KBID, &c.Content, &c.ChunkIndex, &c.TokenCount); err != nil {
			return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
		score := likeFallbackScore
		out = append(out, entities.RetrievedChunk{
			Chunk:        c,
			Score:        score,
			KeywordScore: &score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return out, nil
}
