package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/internal/repository/repotest"
)

func seedDocument(t *testing.T, repo DocumentRepository, id string, status model.DocumentStatus, progress int) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &model.Document{
		ID: id, Name: id + ".pdf", Status: status, Progress: progress,
	}))
}

func TestDocumentRepository_CreateAndFind(t *testing.T) {
	repo := NewDocumentRepository(repotest.NewDB(t))
	ctx := context.Background()
	seedDocument(t, repo, "doc1", model.StatusPending, 0)

	doc, err := repo.FindByID(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1.pdf", doc.Name)
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDocumentRepository_FindAllNewestFirst(t *testing.T) {
	repo := NewDocumentRepository(repotest.NewDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.Create(ctx, &model.Document{
			ID: id, Name: id, Status: model.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	docs, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "old", docs[2].ID)
}

func TestDocumentRepository_UpdateProgressOnlyWhileActive(t *testing.T) {
	repo := NewDocumentRepository(repotest.NewDB(t))
	ctx := context.Background()
	seedDocument(t, repo, "active", model.StatusProcessing, 30)
	seedDocument(t, repo, "done", model.StatusDone, 100)

	ok, err := repo.UpdateProgress(ctx, "active", model.StatusProcessing, 40)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateProgress(ctx, "done", model.StatusProcessing, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	doc, _ := repo.FindByID(ctx, "done")
	assert.Equal(t, model.StatusDone, doc.Status)
	assert.Equal(t, 100, doc.Progress)

	ok, err = repo.UpdateProgress(ctx, "missing", model.StatusProcessing, 50)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentRepository_ResetOnlyFailed(t *testing.T) {
	repo := NewDocumentRepository(repotest.NewDB(t))
	ctx := context.Background()
	seedDocument(t, repo, "failed", model.StatusFailed, 40)
	seedDocument(t, repo, "done", model.StatusDone, 100)

	ok, err := repo.Reset(ctx, "failed")
	require.NoError(t, err)
	assert.True(t, ok)
	doc, _ := repo.FindByID(ctx, "failed")
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.Equal(t, 0, doc.Progress)

	ok, err = repo.Reset(ctx, "done")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentRepository_DeleteCascadesChunks(t *testing.T) {
	db := repotest.NewDB(t)
	docs := NewDocumentRepository(db)
	chunks := NewChunkRepository(db)
	ctx := context.Background()
	seedDocument(t, docs, "doc1", model.StatusDone, 100)
	seedDocument(t, docs, "doc2", model.StatusDone, 100)
	require.NoError(t, chunks.Create(ctx, &model.DocumentChunk{ID: "c1", DocumentID: "doc1", Content: "a", Embedding: model.Vector{1}}))
	require.NoError(t, chunks.Create(ctx, &model.DocumentChunk{ID: "c2", DocumentID: "doc2", Content: "b", Embedding: model.Vector{1}}))

	existed, err := docs.Delete(ctx, "doc1")
	require.NoError(t, err)
	assert.True(t, existed)

	n, _ := chunks.CountByDocumentID(ctx, "doc1")
	assert.Zero(t, n)
	n, _ = chunks.CountByDocumentID(ctx, "doc2")
	assert.EqualValues(t, 1, n)

	existed, err = docs.Delete(ctx, "doc1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestDocumentRepository_DeleteAll(t *testing.T) {
	db := repotest.NewDB(t)
	docs := NewDocumentRepository(db)
	chunks := NewChunkRepository(db)
	ctx := context.Background()
	seedDocument(t, docs, "doc1", model.StatusDone, 100)
	seedDocument(t, docs, "doc2", model.StatusPending, 0)
	require.NoError(t, chunks.Create(ctx, &model.DocumentChunk{ID: "c1", DocumentID: "doc1", Content: "a", Embedding: model.Vector{1}}))

	n, err := docs.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	all, _ := docs.FindAll(ctx)
	assert.Empty(t, all)
	count, _ := chunks.CountByDocumentID(ctx, "doc1")
	assert.Zero(t, count)
}
