package vectorstore

import (
	"context"

	"github.com/google/uuid"

	"docchat-go/internal/model"
	"docchat-go/internal/repository"
	"docchat-go/pkg/log"
)

// SQLStore keeps chunks in the document_chunks table and ranks them exactly
// in process. A document's chunks are small enough to scan per query.
type SQLStore struct {
	chunks repository.ChunkRepository
	dim    int
}

// NewSQLStore creates a store over the chunk repository for vectors of length dim.
func NewSQLStore(chunks repository.ChunkRepository, dim int) *SQLStore {
	return &SQLStore{chunks: chunks, dim: dim}
}

func (s *SQLStore) Dimension() int { return s.dim }

func (s *SQLStore) Insert(ctx context.Context, documentID, content string, embedding []float32) (string, error) {
	if err := checkVector(embedding, s.dim); err != nil {
		return "", err
	}
	chunk := &model.DocumentChunk{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Content:    content,
		Embedding:  model.Vector(embedding),
	}
	if err := s.chunks.Create(ctx, chunk); err != nil {
		return "", err
	}
	return chunk.ID, nil
}

func (s *SQLStore) QueryNearest(ctx context.Context, documentID string, query []float32, k int) ([]string, error) {
	if err := checkVector(query, s.dim); err != nil {
		return nil, err
	}
	if err := checkK(k); err != nil {
		return nil, err
	}
	chunks, err := s.chunks.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != s.dim {
			log.Warnf("[VectorStore] 跳过维度异常的分块 %s (dims=%d)", ch.ID, len(ch.Embedding))
			continue
		}
		candidates = append(candidates, candidate{
			content:  ch.Content,
			distance: CosineDistance(query, ch.Embedding),
		})
	}
	return nearest(candidates, k), nil
}

func (s *SQLStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.chunks.DeleteByDocumentID(ctx, documentID)
}
