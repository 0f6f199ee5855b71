// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/pkg/log"
	"docchat-go/pkg/storage"
	"docchat-go/pkg/tasks"
)

// DocumentStore 是文档生命周期的写入方，由 tracker.Tracker 实现。
type DocumentStore interface {
	DocumentReader
	Create(ctx context.Context, id, name, objectKey string) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	Fail(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) (*model.Document, error)
	DeleteAll(ctx context.Context) ([]model.Document, error)
}

// EnqueueFunc 把摄取任务交给后台处理。
type EnqueueFunc func(ctx context.Context, task tasks.IngestionTask) error

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	Upload(ctx context.Context, fileName string, r io.Reader, size int64) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
}

type documentService struct {
	docs    DocumentStore
	objects storage.ObjectStore
	enqueue EnqueueFunc
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(docs DocumentStore, objects storage.ObjectStore, enqueue EnqueueFunc) DocumentService {
	return &documentService{docs: docs, objects: objects, enqueue: enqueue}
}

// Upload 保存 PDF、创建 PENDING 文档并投递摄取任务。
func (s *documentService) Upload(ctx context.Context, fileName string, r io.Reader, size int64) (*model.Document, error) {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("file name is empty: %w", errs.ErrInvalidInput)
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return nil, fmt.Errorf("only PDF files are accepted, got %q: %w", name, errs.ErrInvalidInput)
	}
	if size == 0 {
		return nil, fmt.Errorf("file %q is empty: %w", name, errs.ErrInvalidInput)
	}

	// 根据文件头确认内容确实是 PDF
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if ct := http.DetectContentType(head); ct != "application/pdf" {
		return nil, fmt.Errorf("file %q is not a PDF (%s): %w", name, ct, errs.ErrInvalidInput)
	}
	body := io.MultiReader(bytes.NewReader(head), r)

	id := uuid.NewString()
	key := storage.UploadKey(id, name)
	if err := s.objects.Put(ctx, key, body, size, "application/pdf"); err != nil {
		return nil, fmt.Errorf("store upload: %w: %w", errs.ErrStoreUnavailable, err)
	}

	doc, err := s.docs.Create(ctx, id, name, key)
	if err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}

	task := tasks.IngestionTask{DocumentID: doc.ID, ObjectKey: key, FileName: name}
	if err := s.enqueue(ctx, task); err != nil {
		log.Errorw("[DocumentService] 投递摄取任务失败", "document_id", doc.ID, "error", err)
		if ferr := s.docs.Fail(context.WithoutCancel(ctx), doc.ID); ferr != nil {
			log.Warnf("[DocumentService] 标记文档 %s 为 FAILED 失败: %v", doc.ID, ferr)
		}
		return nil, fmt.Errorf("enqueue ingestion: %w", err)
	}
	log.Infof("[DocumentService] 文档已上传并投递, id: %s, name: %s, size: %d", doc.ID, name, size)
	return doc, nil
}

func (s *documentService) List(ctx context.Context) ([]model.Document, error) {
	return s.docs.List(ctx)
}

func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.Get(ctx, id)
}

// Delete 删除文档、分块以及尚未清理的上传文件。
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.docs.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeObject(ctx, doc.ObjectKey)
	return nil
}

func (s *documentService) DeleteAll(ctx context.Context) (int, error) {
	docs, err := s.docs.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		s.removeObject(ctx, d.ObjectKey)
	}
	return len(docs), nil
}

// removeObject 尽力删除对象，失败只记录日志。
func (s *documentService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.objects.Remove(ctx, key); err != nil {
		log.Warnf("[DocumentService] 删除上传文件失败, Object: %s, Error: %v", key, err)
	}
}
