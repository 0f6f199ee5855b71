package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docchat-go/internal/chunker"
	"docchat-go/internal/model"
	"docchat-go/internal/notify"
	"docchat-go/internal/repository"
	"docchat-go/internal/repository/repotest"
	"docchat-go/internal/tracker"
	"docchat-go/internal/vectorstore"
	"docchat-go/pkg/embedding"
)

const testDim = 16

type progressRecorder struct {
	mu      sync.Mutex
	updates []model.StatusPayload
}

func (r *progressRecorder) Broadcast(event string, payload any) {
	if event != notify.EventDocumentUpdate {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, payload.(model.StatusPayload))
}

func (r *progressRecorder) progresses() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Progress
	}
	return out
}

// flakyEmbedder 在第 failAt 次调用时返回错误，before 在每次调用前执行。
type flakyEmbedder struct {
	embedding.Client
	calls  int
	failAt int
	err    error
	before func(call int)
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.before != nil {
		e.before(e.calls)
	}
	if e.calls == e.failAt {
		return nil, e.err
	}
	return e.Client.Embed(ctx, text)
}

type env struct {
	tracker  *tracker.Tracker
	chunks   repository.ChunkRepository
	store    vectorstore.Store
	embedder *flakyEmbedder
	events   *progressRecorder
	pipeline *Ingestion
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.NewDB(t)
	chunks := repository.NewChunkRepository(db)
	store := vectorstore.NewSQLStore(chunks, testDim)
	events := &progressRecorder{}
	tr := tracker.New(repository.NewDocumentRepository(db), store, events)
	c, err := chunker.New(1000, 200, chunker.WithBreakTolerance(0))
	require.NoError(t, err)
	emb := &flakyEmbedder{Client: embedding.NewHashClient(testDim)}
	p, err := NewIngestion(tr, c, emb, store)
	require.NoError(t, err)
	return &env{tracker: tr, chunks: chunks, store: store, embedder: emb, events: events, pipeline: p}
}

func (e *env) createDoc(t *testing.T) *model.Document {
	t.Helper()
	doc, err := e.tracker.Create(context.Background(), "", "paper.pdf", "uploads/x/paper.pdf")
	require.NoError(t, err)
	return doc
}

func (e *env) chunkCount(t *testing.T, id string) int64 {
	t.Helper()
	n, err := e.chunks.CountByDocumentID(context.Background(), id)
	require.NoError(t, err)
	return n
}
