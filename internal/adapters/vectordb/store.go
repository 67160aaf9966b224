// Package vectordb implements the Vector Store: per-knowledge-base dense
// vector persistence over SQLite, packing float32 values little-endian
// into BLOB columns and scanning them with an exact (non-ANN) cosine scan.
// Grounded on the teacher's LanceDBStore
// (internal/adapters/vectordb/lancedb.go) for the sql.DB + mutex +
// cosineSimilarity shape, adapted to spec.md §4.5's per-kb table and
// little-endian packed storage.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/baiyu-ai/ragspace/internal/domain/ports"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.VectorStore. One row per chunk; vectors are
// packed into a single little-endian float32 BLOB.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens the SQLite database at path and ensures the
// vectors table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening vector database: %v", domerrors.ErrDatabase, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS vectors (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			kb_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			seq INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing vectors table: %v", domerrors.ErrDatabase, err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_vectors_kb ON vectors(kb_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_vectors_doc ON vectors(document_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// CreateBase is a no-op: the vectors table is shared across knowledge
// bases and rows are scoped by kb_id, so there is nothing per-base to
// provision beyond what Open already ensures.
func (s *Store) CreateBase(ctx context.Context, kbID string, dim int) error {
	return nil
}

// Insert packs and persists one row per vector, using document content
// supplied by the caller (the chunk text, mirrored for convenience so
// Search can return content without a metadata-store join).
func (s *Store) Insert(ctx context.Context, kbID string, vectors []entities.Vector, contents map[string]string) error {
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM vectors`).Scan(&seq); err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO vectors (chunk_id, document_id, kb_id, content, embedding, seq)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, v := range vectors {
		seq++
		packed := packVector(v.Data)
		content := contents[v.ChunkID]
		if _, err := stmt.ExecContext(ctx, v.ChunkID, v.DocumentID, kbID, content, packed, seq); err != nil {
			return fmt.Errorf("%w: inserting vector: %v", domerrors.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// Search performs an exact cosine-similarity scan over every vector in
// kbID, returning the top-k matches sorted by descending score with
// insertion order breaking ties.
func (s *Store) Search(ctx context.Context, kbID string, query []float32, topK int) ([]ports.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, content, embedding, seq
		FROM vectors WHERE kb_id = ?`, kbID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	defer rows.Close()

	type candidate struct {
		match ports.VectorMatch
		seq   int64
	}
	var candidates []candidate

	for rows.Next() {
		var chunkID, documentID, content string
		var blob []byte
		var seq int64
		if err := rows.Scan(&chunkID, &documentID, &content, &blob, &seq); err != nil {
			return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
		}
		vec := unpackVector(blob)
		score := cosineSimilarity(query, vec)
		candidates = append(candidates, candidate{
			match: ports.VectorMatch{ChunkID: chunkID, DocumentID: documentID, Content: content, Score: score},
			seq:   seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].match.Score != candidates[j].match.Score {
			return candidates[i].match.Score > candidates[j].match.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]ports.VectorMatch, len(candidates))
	for i, c := range candidates {
		out[i] = c.match
	}
	return out, nil
}

// DeleteByDocument removes every vector belonging to documentID.
func (s *Store) DeleteByDocument(ctx context.Context, kbID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE kb_id = ? AND document_id = ?`, kbID, documentID)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// Drop removes every vector belonging to kbID.
func (s *Store) Drop(ctx context.Context, kbID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE kb_id = ?`, kbID)
	if err != nil {
		return fmt.Errorf("%w: %v", domerrors.ErrDatabase, err)
	}
	return nil
}

// packVector serializes a float32 slice little-endian, per spec.md §6.
func packVector(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, f := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// unpackVector is packVector's inverse.
func unpackVector(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// cosineSimilarity returns 0 for zero-norm or mismatched-length vectors,
// per spec.md §4.5's edge-case handling.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
