// Package usecases implements application business rules: orchestration
// that depends only on domain entities and ports, never on concrete
// adapters. Grounded on the teacher's QueryUseCase
// (internal/domain/usecases/query.go) for the embed-then-search shape,
// generalized to spec.md §4.7's vector/keyword/hybrid modes and
// original_source's retrieval.rs merge_results RRF fusion.
package usecases

import (
	"context"
	"fmt"
	"sort"

	"github.com/baiyu-ai/ragspace/internal/domain/entities"
	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/baiyu-ai/ragspace/internal/domain/ports"
)

// rrfK is the Reciprocal Rank Fusion smoothing constant from spec.md §4.7.
const rrfK = 60.0

// Retriever runs vector, keyword, or hybrid (RRF-fused) retrieval over
// one knowledge base.
type Retriever struct {
	metadata ports.MetadataStore
	vectors  ports.VectorStore
	keyword  ports.KeywordIndex
	embedder ports.EmbeddingService
}

// NewRetriever wires a Retriever from its four ports.
func NewRetriever(metadata ports.MetadataStore, vectors ports.VectorStore, keyword ports.KeywordIndex, embedder ports.EmbeddingService) *Retriever {
	return &Retriever{metadata: metadata, vectors: vectors, keyword: keyword, embedder: embedder}
}

// Retrieve runs req.Mode against req.KBID and returns ranked chunks.
func (r *Retriever) Retrieve(ctx context.Context, req entities.RetrievalRequest, apiKey string) (*entities.RetrievalResult, error) {
	kb, err := r.metadata.GetKnowledgeBase(ctx, req.KBID)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	var chunks []entities.RetrievedChunk

	switch req.Mode {
	case entities.ModeKeyword:
		chunks, err = r.keyword.Search(ctx, req.KBID, req.Query, topK)
		if err != nil {
			return nil, err
		}
	case entities.ModeHybrid:
		chunks, err = r.retrieveHybrid(ctx, kb, req, topK, apiKey)
		if err != nil {
			return nil, err
		}
	default: // entities.ModeVector and unset
		chunks, err = r.retrieveVector(ctx, kb, req, topK, apiKey)
		if err != nil {
			return nil, err
		}
	}

	enriched, err := r.enrich(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// Keyword mode's score is a keyword-relevance signal, not a cosine
	// similarity; a similarity_threshold (meant for vector/hybrid scores)
	// must not filter it out.
	filtered := enriched
	if req.Mode != entities.ModeKeyword {
		filtered = enriched[:0]
		for _, c := range enriched {
			if c.Score >= req.SimilarityThreshold {
				filtered = append(filtered, c)
			}
		}
	}

	sortRetrieved(filtered)

	return &entities.RetrievalResult{
		Query:       req.Query,
		Chunks:      filtered,
		TotalChunks: len(filtered),
	}, nil
}

func (r *Retriever) retrieveVector(ctx context.Context, kb *entities.KnowledgeBase, req entities.RetrievalRequest, topK int, apiKey string) ([]entities.RetrievedChunk, error) {
	vecs, err := r.embedder.Embed(ctx, kb.EmbeddingProvider, kb.EmbeddingModel, apiKey, []string{req.Query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", domerrors.ErrRetrieval)
	}

	matches, err := r.vectors.Search(ctx, req.KBID, vecs[0], topK)
	if err != nil {
		return nil, err
	}

	out := make([]entities.RetrievedChunk, len(matches))
	for i, m := range matches {
		score := m.Score
		out[i] = entities.RetrievedChunk{
			Chunk:       entities.Chunk{ID: m.ChunkID, DocumentID: m.DocumentID, KBID: req.KBID, Content: m.Content},
			Score:       score,
			VectorScore: &score,
		}
	}
	return out, nil
}

func (r *Retriever) retrieveHybrid(ctx context.Context, kb *entities.KnowledgeBase, req entities.RetrievalRequest, topK int, apiKey string) ([]entities.RetrievedChunk, error) {
	vectorResults, err := r.retrieveVector(ctx, kb, req, 2*topK, apiKey)
	if err != nil {
		return nil, err
	}
	keywordResults, err := r.keyword.Search(ctx, req.KBID, req.Query, 2*topK)
	if err != nil {
		return nil, err
	}

	return fuseRRF(vectorResults, keywordResults, topK), nil
}

// fuseRRF merges two ranked lists with Reciprocal Rank Fusion
// (score(c) = Σ 1/(k + rank)) and preserves the per-source component
// scores on the winning record.
func fuseRRF(vector, keyword []entities.RetrievedChunk, topK int) []entities.RetrievedChunk {
	type fused struct {
		chunk        entities.Chunk
		rrfScore     float64
		vectorScore  *float64
		keywordScore *float64
	}
	byID := make(map[string]*fused)

	for rank, c := range vector {
		f, ok := byID[c.Chunk.ID]
		if !ok {
			f = &fused{chunk: c.Chunk}
			byID[c.Chunk.ID] = f
		}
		f.rrfScore += 1.0 / (rrfK + float64(rank))
		f.vectorScore = c.VectorScore
	}
	for rank, c := range keyword {
		f, ok := byID[c.Chunk.ID]
		if !ok {
			f = &fused{chunk: c.Chunk}
			byID[c.Chunk.ID] = f
		}
		f.rrfScore += 1.0 / (rrfK + float64(rank))
		f.keywordScore = c.KeywordScore
	}

	out := make([]entities.RetrievedChunk, 0, len(byID))
	for _, f := range byID {
		out = append(out, entities.RetrievedChunk{
			Chunk:        f.chunk,
			Score:        f.rrfScore,
			VectorScore:  f.vectorScore,
			KeywordScore: f.keywordScore,
		})
	}

	sortRetrieved(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// enrich fills in chunk index/token-count and document filename from the
// Metadata Store, skipping chunks whose owning Document is not
// completed (spec.md §4.8's retrieval-side enforcement).
func (r *Retriever) enrich(ctx context.Context, chunks []entities.RetrievedChunk) ([]entities.RetrievedChunk, error) {
	docCache := make(map[string]*entities.Document)
	out := make([]entities.RetrievedChunk, 0, len(chunks))

	for _, rc := range chunks {
		full, err := r.metadata.GetChunk(ctx, rc.Chunk.ID)
		if err != nil {
			continue
		}
		rc.Chunk.ChunkIndex = full.ChunkIndex
		rc.Chunk.TokenCount = full.TokenCount
		if rc.Chunk.Content == "" {
			rc.Chunk.Content = full.Content
		}

		doc, ok := docCache[full.DocumentID]
		if !ok {
			doc, err = r.metadata.GetDocument(ctx, full.DocumentID)
			if err != nil {
				continue
			}
			docCache[full.DocumentID] = doc
		}
		if doc.Status != entities.DocumentCompleted {
			continue
		}

		rc.DocumentFilename = doc.Filename
		out = append(out, rc)
	}
	return out, nil
}

// sortRetrieved sorts descending by score, breaking ties by chunk id
// lexicographic order, per spec.md §4.7.
func sortRetrieved(chunks []entities.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Chunk.ID < chunks[j].Chunk.ID
	})
}
