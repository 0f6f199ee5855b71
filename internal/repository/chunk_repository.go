package repository

import (
	"context"

	"gorm.io/gorm"

	"docchat-go/internal/model"
)

// ChunkRepository 定义了对 document_chunks 表的数据操作接口。
type ChunkRepository interface {
	// Create 写入一个分块，Ordinal 为空时自动追加到该文档末尾。
	Create(ctx context.Context, chunk *model.DocumentChunk) error
	FindByDocumentID(ctx context.Context, documentID string) ([]model.DocumentChunk, error)
	CountByDocumentID(ctx context.Context, documentID string) (int64, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) Create(ctx context.Context, chunk *model.DocumentChunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if chunk.Ordinal == 0 {
			var last struct{ Max *int64 }
			if err := tx.Model(&model.DocumentChunk{}).
				Select("MAX(ordinal) AS max").
				Where("document_id = ?", chunk.DocumentID).
				Scan(&last).Error; err != nil {
				return err
			}
			if last.Max != nil {
				chunk.Ordinal = *last.Max + 1
			} else {
				chunk.Ordinal = 1
			}
		}
		return tx.Create(chunk).Error
	})
	if err != nil {
		return storeErr("create chunk", err)
	}
	return nil
}

// FindByDocumentID 按插入顺序返回文档的全部分块。
func (r *chunkRepository) FindByDocumentID(ctx context.Context, documentID string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("ordinal asc").
		Find(&chunks).Error
	if err != nil {
		return nil, storeErr("find chunks", err)
	}
	return chunks, nil
}

func (r *chunkRepository) CountByDocumentID(ctx context.Context, documentID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, storeErr("count chunks", err)
	}
	return n, nil
}

func (r *chunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return storeErr("delete chunks", err)
	}
	return nil
}
