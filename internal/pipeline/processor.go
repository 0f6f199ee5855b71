// Package pipeline 定义了文件处理与文档摄取的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/pkg/log"
	"docchat-go/pkg/storage"
	"docchat-go/pkg/tasks"
)

// TextExtractor 从文件内容中提取纯文本，由 tika.Client 实现。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// DocumentStates 是 Processor 需要的文档读写能力，由 tracker.Tracker 实现。
type DocumentStates interface {
	StatusWriter
	Get(ctx context.Context, id string) (*model.Document, error)
	Restart(ctx context.Context, id string) (bool, error)
}

// Processor 消费摄取任务：下载上传的文件，提取文本，再交给 Ingestion。
type Processor struct {
	docs      DocumentStates
	objects   storage.ObjectStore
	extractor TextExtractor
	ingestion *Ingestion
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(docs DocumentStates, objects storage.ObjectStore, extractor TextExtractor, ingestion *Ingestion) *Processor {
	return &Processor{docs: docs, objects: objects, extractor: extractor, ingestion: ingestion}
}

// Process 是文件处理的主函数。返回 nil 表示任务无需再投递。
func (p *Processor) Process(ctx context.Context, task tasks.IngestionTask) error {
	log.Infof("[Processor] 开始处理文件, DocumentID: %s, FileName: %s", task.DocumentID, task.FileName)

	doc, err := p.docs.Get(ctx, task.DocumentID)
	if errors.Is(err, errs.ErrNotFound) {
		log.Warnf("[Processor] 文档 %s 已不存在，丢弃任务", task.DocumentID)
		return nil
	}
	if err != nil {
		return err
	}
	switch doc.Status {
	case model.StatusDone:
		log.Infof("[Processor] 文档 %s 已完成摄取，跳过", doc.ID)
		return nil
	case model.StatusFailed:
		// 重新投递的任务：从头开始一次新的尝试
		if _, err := p.docs.Restart(ctx, doc.ID); err != nil {
			return err
		}
	}

	if err := p.step(ctx, doc.ID, ProgressStarted); err != nil {
		return ignoreGone(err)
	}

	// 1. 从 MinIO 下载文件
	log.Infof("[Processor] 步骤1: 下载文件, Object: %s", task.ObjectKey)
	data, err := p.objects.Get(ctx, task.ObjectKey)
	if err != nil {
		return p.fail(ctx, doc.ID, err)
	}
	if len(data) == 0 {
		return p.fail(ctx, doc.ID, fmt.Errorf("文件 '%s' 内容为空: %w", task.FileName, errs.ErrInvalidInput))
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d字节", len(data))
	if err := p.step(ctx, doc.ID, ProgressFileRead); err != nil {
		return ignoreGone(err)
	}

	// 2. 使用 Tika 提取文本
	text, err := p.extractor.ExtractText(ctx, bytes.NewReader(data), task.FileName)
	if err != nil {
		return p.fail(ctx, doc.ID, fmt.Errorf("使用 Tika 提取文本失败: %w", err))
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))
	if err := p.step(ctx, doc.ID, ProgressExtracted); err != nil {
		return ignoreGone(err)
	}

	// 3. 分块、向量化、入库
	if err := p.ingestion.Run(ctx, doc.ID, text); err != nil {
		return ignoreGone(err)
	}

	// 摄取成功后删除上传的原始文件
	if err := p.objects.Remove(ctx, task.ObjectKey); err != nil {
		log.Warnf("[Processor] 删除上传文件失败, Object: %s, Error: %v", task.ObjectKey, err)
	}
	log.Infof("[Processor] 文件处理成功完成, DocumentID: %s", doc.ID)
	return nil
}

func (p *Processor) step(ctx context.Context, id string, progress int) error {
	err := p.docs.Advance(ctx, id, progress, model.StatusProcessing)
	if err != nil && !errors.Is(err, errs.ErrNotFound) && !errors.Is(err, errs.ErrTerminal) {
		return p.fail(ctx, id, err)
	}
	return err
}

func (p *Processor) fail(ctx context.Context, id string, cause error) error {
	log.Errorw("[Processor] 文件处理失败", "document_id", id, "error", cause)
	if err := p.docs.Fail(context.WithoutCancel(ctx), id); err != nil {
		log.Warnf("[Processor] 标记文档 %s 为 FAILED 失败: %v", id, err)
	}
	return cause
}

// ignoreGone 把"文档已删除/已终结"视为任务结束，不再重试。
func ignoreGone(err error) error {
	if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrTerminal) {
		return nil
	}
	return err
}
