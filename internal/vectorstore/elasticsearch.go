package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/pkg/es"
)

const maxNumCandidates = 10000

// ESStore keeps chunks in an Elasticsearch dense_vector index and relies on
// approximate kNN with a document_id filter.
type ESStore struct {
	client *elasticsearch.Client
	index  string
	dim    int
	model  string
	seq    atomic.Int64
}

// NewESStore creates a store over an existing index. Call es.EnsureIndex first.
func NewESStore(client *elasticsearch.Client, index string, dim int, modelVersion string) *ESStore {
	s := &ESStore{client: client, index: index, dim: dim, model: modelVersion}
	// 以纳秒时间戳为起点，进程重启后序号仍保持递增
	s.seq.Store(time.Now().UnixNano())
	return s
}

func (s *ESStore) Dimension() int { return s.dim }

func (s *ESStore) Insert(ctx context.Context, documentID, content string, embedding []float32) (string, error) {
	if err := checkVector(embedding, s.dim); err != nil {
		return "", err
	}
	doc := model.EsChunk{
		ChunkID:    uuid.NewString(),
		DocumentID: documentID,
		Seq:        s.seq.Add(1),
		Content:    content,
		Vector:     embedding,
		Model:      s.model,
	}
	if err := es.IndexChunk(ctx, s.client, s.index, doc); err != nil {
		return "", fmt.Errorf("index chunk: %w: %w", errs.ErrStoreUnavailable, err)
	}
	return doc.ChunkID, nil
}

func (s *ESStore) QueryNearest(ctx context.Context, documentID string, query []float32, k int) ([]string, error) {
	if err := checkVector(query, s.dim); err != nil {
		return nil, err
	}
	if err := checkK(k); err != nil {
		return nil, err
	}
	hits, err := es.Search(ctx, s.client, s.index, buildKNNQuery(documentID, query, k))
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", errs.ErrStoreUnavailable, err)
	}

	// ES 的 cosine 得分为 (1+cos)/2，得分越高距离越近
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Source.Seq < hits[j].Source.Seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Source.Content
	}
	return out, nil
}

func (s *ESStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := es.DeleteByDocumentID(ctx, s.client, s.index, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w: %w", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// buildKNNQuery 构造限定在单个文档内的 kNN 检索请求。
func buildKNNQuery(documentID string, query []float32, k int) map[string]any {
	if k > maxNumCandidates {
		k = maxNumCandidates
	}
	candidates := k * 10
	if candidates < 100 {
		candidates = 100
	}
	if candidates > maxNumCandidates {
		candidates = maxNumCandidates
	}
	return map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   query,
			"k":              k,
			"num_candidates": candidates,
			"filter": map[string]any{
				"term": map[string]any{"document_id": documentID},
			},
		},
		"size":    k,
		"_source": []string{"chunk_id", "document_id", "seq", "content"},
	}
}
