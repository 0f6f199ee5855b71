package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docchat-go/internal/chunker"
	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/internal/vectorstore"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/log"
)

// 进度检查点
const (
	ProgressStarted   = 5
	ProgressFileRead  = 10
	ProgressExtracted = 20
	ProgressChunked   = 30
	progressEmbedSpan = 65
	ProgressDone      = 100
)

// StatusWriter 是 Ingestion 需要的状态写入能力，由 tracker.Tracker 实现。
type StatusWriter interface {
	Advance(ctx context.Context, id string, progress int, status model.DocumentStatus) error
	Fail(ctx context.Context, id string) error
}

// Ingestion 把一篇文档的文本切块、向量化并写入向量存储。
// 同一文档内严格串行，不同文档可以并发调用 Run。
type Ingestion struct {
	status   StatusWriter
	chunker  *chunker.Chunker
	embedder embedding.Client
	store    vectorstore.Store

	wg sync.WaitGroup
}

// NewIngestion 创建摄取流水线。嵌入维度与向量存储维度不一致时返回 ErrDimensionMismatch。
func NewIngestion(status StatusWriter, c *chunker.Chunker, embedder embedding.Client, store vectorstore.Store) (*Ingestion, error) {
	if err := vectorstore.CheckDimension(embedder.Dimension(), store); err != nil {
		return nil, err
	}
	return &Ingestion{status: status, chunker: c, embedder: embedder, store: store}, nil
}

// StartIngestion 在后台运行 Run，结果通过状态事件观察。
func (p *Ingestion) StartIngestion(documentID, text string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.Run(context.Background(), documentID, text)
	}()
}

// Wait 等待所有 StartIngestion 启动的任务结束。
func (p *Ingestion) Wait() {
	p.wg.Wait()
}

// EmbedProgress 返回 total 个分块中已完成 done 个时的进度。
func EmbedProgress(done, total int) int {
	if total <= 0 {
		return ProgressChunked
	}
	return ProgressChunked + done*progressEmbedSpan/total
}

// Run 同步执行一次完整的摄取。任何一步出错都会把文档置为 FAILED 并返回该错误，
// 不在内部重试。文档在中途被删除时停止并清理已写入的分块。
func (p *Ingestion) Run(ctx context.Context, documentID, text string) error {
	started := time.Now()
	if strings.TrimSpace(text) == "" {
		return p.fail(ctx, documentID, fmt.Errorf("document %s has no text: %w", documentID, errs.ErrInvalidInput))
	}

	chunks := p.chunker.Split(text)
	log.Infof("[Pipeline] 文档 %s 分块完成, 共 %d 个分块", documentID, len(chunks))
	if err := p.advance(ctx, documentID, ProgressChunked, model.StatusProcessing); err != nil {
		return err
	}

	// 重新摄取前清理上一次尝试留下的分块
	if err := p.store.DeleteByDocument(ctx, documentID); err != nil {
		return p.fail(ctx, documentID, fmt.Errorf("purge previous chunks: %w", err))
	}

	for i, chunk := range chunks {
		vector, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			return p.fail(ctx, documentID, fmt.Errorf("embed chunk %d/%d: %w", i+1, len(chunks), err))
		}
		if _, err := p.store.Insert(ctx, documentID, chunk, vector); err != nil {
			return p.fail(ctx, documentID, fmt.Errorf("insert chunk %d/%d: %w", i+1, len(chunks), err))
		}
		if err := p.advance(ctx, documentID, EmbedProgress(i+1, len(chunks)), model.StatusProcessing); err != nil {
			return err
		}
	}

	if err := p.advance(ctx, documentID, ProgressDone, model.StatusDone); err != nil {
		return err
	}
	log.Infow("[Pipeline] 文档摄取完成", "document_id", documentID, "chunks", len(chunks), "elapsed", time.Since(started).String())
	return nil
}

// advance 推进进度。文档已被删除时清理分块后返回；其他写入错误按失败处理。
func (p *Ingestion) advance(ctx context.Context, documentID string, progress int, status model.DocumentStatus) error {
	err := p.status.Advance(ctx, documentID, progress, status)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrNotFound):
		log.Warnf("[Pipeline] 文档 %s 已被删除，停止摄取", documentID)
		if perr := p.store.DeleteByDocument(context.Background(), documentID); perr != nil {
			log.Errorw("[Pipeline] 清理已删除文档的分块失败", "document_id", documentID, "error", perr)
		}
		return err
	case errors.Is(err, errs.ErrTerminal):
		log.Warnf("[Pipeline] 文档 %s 已处于终态，停止摄取", documentID)
		return err
	default:
		return p.fail(ctx, documentID, err)
	}
}

func (p *Ingestion) fail(ctx context.Context, documentID string, cause error) error {
	log.Errorw("[Pipeline] 文档摄取失败", "document_id", documentID, "error", cause)
	// ctx 可能已取消，FAILED 仍需落库
	if err := p.status.Fail(context.WithoutCancel(ctx), documentID); err != nil {
		log.Warnf("[Pipeline] 标记文档 %s 为 FAILED 失败: %v", documentID, err)
	}
	return cause
}
