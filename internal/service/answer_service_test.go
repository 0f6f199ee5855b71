package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/config"
	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/internal/vectorstore"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/llm"
)

type fakeDocs map[string]*model.Document

func (f fakeDocs) Get(_ context.Context, id string) (*model.Document, error) {
	d, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	return d, nil
}

type fakeLLM struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeLLM) Generate(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

type stubStore struct {
	vectorstore.Store
	dim      int
	contents []string
	gotK     int
}

func (s *stubStore) Dimension() int { return s.dim }

func (s *stubStore) QueryNearest(_ context.Context, _ string, _ []float32, k int) ([]string, error) {
	s.gotK = k
	return s.contents, nil
}

func newAnswerFixture(t *testing.T, status model.DocumentStatus, contents []string) (AnswerService, *fakeLLM, *stubStore) {
	t.Helper()
	docs := fakeDocs{"doc1": {ID: "doc1", Name: "a.pdf", Status: status}}
	store := &stubStore{dim: 8, contents: contents}
	gen := &fakeLLM{reply: "generated answer"}
	svc, err := NewAnswerService(docs, embedding.NewHashClient(8), store, gen, config.AnswerConfig{TopK: 5}, config.LLMPromptConfig{})
	require.NoError(t, err)
	return svc, gen, store
}

func TestAnswer_BuildsGroundedPrompt(t *testing.T) {
	svc, gen, store := newAnswerFixture(t, model.StatusDone, []string{"nearest chunk", "second chunk"})

	answer, err := svc.Answer(context.Background(), "doc1", "  What is it?  ")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer)
	assert.Equal(t, 5, store.gotK)

	require.Len(t, gen.messages, 2)
	assert.Equal(t, "system", gen.messages[0].Role)
	assert.Equal(t,
		"Answer the user's question based ONLY on the following context. If the answer is not in the context, say \"I don't have enough information to answer that.\"\n\nContext:\nnearest chunk\n\nsecond chunk",
		gen.messages[0].Content)
	assert.Equal(t, llm.Message{Role: "user", Content: "What is it?"}, gen.messages[1])
}

func TestAnswer_NoChunksStillGenerates(t *testing.T) {
	svc, gen, _ := newAnswerFixture(t, model.StatusDone, nil)
	gen.reply = "I don't have enough information to answer that."

	answer, err := svc.Answer(context.Background(), "doc1", "anything?")
	require.NoError(t, err)
	assert.Equal(t, "I don't have enough information to answer that.", answer)
	assert.Contains(t, gen.messages[0].Content, "Context:\n")
}

func TestAnswer_Preconditions(t *testing.T) {
	for _, status := range []model.DocumentStatus{model.StatusPending, model.StatusProcessing, model.StatusFailed} {
		svc, gen, _ := newAnswerFixture(t, status, nil)
		_, err := svc.Answer(context.Background(), "doc1", "q")
		assert.ErrorIs(t, err, errs.ErrNotReady, status)
		assert.Nil(t, gen.messages)
	}

	svc, _, _ := newAnswerFixture(t, model.StatusDone, nil)
	_, err := svc.Answer(context.Background(), "missing", "q")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.Answer(context.Background(), "doc1", "   ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestAnswer_GenerationFailureSurfaces(t *testing.T) {
	svc, gen, _ := newAnswerFixture(t, model.StatusDone, []string{"c"})
	gen.err = fmt.Errorf("upstream 500: %w", errs.ErrGenerationUnavailable)

	_, err := svc.Answer(context.Background(), "doc1", "q")
	assert.ErrorIs(t, err, errs.ErrGenerationUnavailable)
}

func TestNewAnswerService_DimensionMismatch(t *testing.T) {
	_, err := NewAnswerService(fakeDocs{}, embedding.NewHashClient(4), &stubStore{dim: 8}, &fakeLLM{}, config.AnswerConfig{}, config.LLMPromptConfig{})
	assert.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestBuildSystemMessage_CustomMarkers(t *testing.T) {
	s := &answerService{prompt: config.LLMPromptConfig{Rules: "Use the context.", RefStart: "<<REF>>", RefEnd: "<<END>>", FallbackText: "No idea."}}
	assert.Equal(t, "Use the context. If the answer is not in the context, say \"No idea.\"\n\n<<REF>>\nctx\n<<END>>", s.buildSystemMessage("ctx"))
}
