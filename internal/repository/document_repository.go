// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docchat-go/internal/errs"
	"docchat-go/internal/model"
)

var activeStatuses = []model.DocumentStatus{model.StatusPending, model.StatusProcessing}

// DocumentRepository 定义了对 documents 表的数据操作接口。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id string) (*model.Document, error)
	FindAll(ctx context.Context) ([]model.Document, error)
	// UpdateProgress 仅当文档仍处于非终态时写入，返回是否有记录被修改。
	UpdateProgress(ctx context.Context, id string, status model.DocumentStatus, progress int) (bool, error)
	// Reset 将 FAILED 的文档重置为 PENDING/0，用于重新摄取。
	Reset(ctx context.Context, id string) (bool, error)
	// Delete 删除文档及其全部分块，返回文档是否存在。
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStoreUnavailable, err)
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return storeErr("create document", err)
	}
	return nil
}

func (r *documentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("find document", err)
	}
	return &doc, nil
}

// FindAll 按创建时间倒序返回全部文档。
func (r *documentRepository) FindAll(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&docs).Error; err != nil {
		return nil, storeErr("list documents", err)
	}
	return docs, nil
}

func (r *documentRepository) UpdateProgress(ctx context.Context, id string, status model.DocumentStatus, progress int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(map[string]interface{}{"status": status, "progress": progress})
	if res.Error != nil {
		return false, storeErr("update document progress", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *documentRepository) Reset(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.StatusFailed).
		Updates(map[string]interface{}{"status": model.StatusPending, "progress": 0})
	if res.Error != nil {
		return false, storeErr("reset document", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *documentRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Document{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, storeErr("delete document", err)
	}
	return deleted > 0, nil
}

func (r *documentRepository) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Document{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storeErr("delete all documents", err)
	}
	return deleted, nil
}
