package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docchat-go/internal/config"
	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/internal/vectorstore"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/llm"
	"docchat-go/pkg/log"
)

const (
	defaultTopK         = 5
	defaultRules        = "Answer the user's question based ONLY on the following context."
	defaultRefStart     = "Context:"
	defaultFallbackText = "I don't have enough information to answer that."
)

// DocumentReader 提供只读的文档查询，由 tracker.Tracker 实现。
type DocumentReader interface {
	Get(ctx context.Context, id string) (*model.Document, error)
}

// AnswerService 基于单个文档的内容回答问题。
type AnswerService interface {
	Answer(ctx context.Context, documentID, question string) (string, error)
}

type answerService struct {
	docs     DocumentReader
	embedder embedding.Client
	store    vectorstore.Store
	llm      llm.Client
	topK     int
	prompt   config.LLMPromptConfig
}

// NewAnswerService 创建问答服务。嵌入维度与向量存储不一致时返回 ErrDimensionMismatch。
func NewAnswerService(docs DocumentReader, embedder embedding.Client, store vectorstore.Store, llmClient llm.Client,
	answerCfg config.AnswerConfig, promptCfg config.LLMPromptConfig) (AnswerService, error) {
	if err := vectorstore.CheckDimension(embedder.Dimension(), store); err != nil {
		return nil, err
	}
	topK := answerCfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &answerService{docs: docs, embedder: embedder, store: store, llm: llmClient, topK: topK, prompt: promptCfg}, nil
}

// Answer 只读：不会修改文档状态。
// 检索结果为空时仍然调用模型，由提示词中的兜底句约束回答。
func (s *answerService) Answer(ctx context.Context, documentID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is empty: %w", errs.ErrInvalidInput)
	}
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Status != model.StatusDone {
		return "", fmt.Errorf("document %s is %s: %w", documentID, doc.Status, errs.ErrNotReady)
	}

	started := time.Now()
	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	chunks, err := s.store.QueryNearest(ctx, documentID, queryVector, s.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	log.Infof("[AnswerService] 文档 %s 检索到 %d 个分块", documentID, len(chunks))

	messages := []llm.Message{
		{Role: "system", Content: s.buildSystemMessage(strings.Join(chunks, "\n\n"))},
		{Role: "user", Content: question},
	}
	answer, err := s.llm.Generate(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	log.Infow("[AnswerService] 回答完成", "document_id", documentID, "chunks", len(chunks), "elapsed", time.Since(started).String())
	return answer, nil
}

// buildSystemMessage 组装系统提示：规则、兜底句，以及包裹在引用标记中的上下文。
func (s *answerService) buildSystemMessage(contextText string) string {
	rules := s.prompt.Rules
	if rules == "" {
		rules = defaultRules
	}
	fallback := s.prompt.FallbackText
	if fallback == "" {
		fallback = defaultFallbackText
	}
	refStart := s.prompt.RefStart
	if refStart == "" {
		refStart = defaultRefStart
	}

	var sys strings.Builder
	sys.WriteString(rules)
	sys.WriteString(" If the answer is not in the context, say \"")
	sys.WriteString(fallback)
	sys.WriteString("\"\n\n")
	sys.WriteString(refStart)
	sys.WriteString("\n")
	sys.WriteString(contextText)
	if s.prompt.RefEnd != "" {
		sys.WriteString("\n")
		sys.WriteString(s.prompt.RefEnd)
	}
	return sys.String()
}
