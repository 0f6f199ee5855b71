package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Vector 是 float32 向量，以 JSON 文本形式持久化，兼容 MySQL 与 SQLite。
type Vector []float32

// Value 实现 driver.Valuer。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner。
func (v *Vector) Scan(src interface{}) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("unsupported vector column type %T", src)
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode vector: %w", err)
	}
	*v = out
	return nil
}

// DocumentChunk 对应于数据库中的 document_chunks 表。
// Ordinal 只用于追溯与相同距离时的排序，不参与检索打分。
type DocumentChunk struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID string    `gorm:"type:varchar(36);not null;index:idx_chunk_doc_ordinal,priority:1" json:"documentId"`
	Ordinal    int64     `gorm:"not null;index:idx_chunk_doc_ordinal,priority:2" json:"ordinal"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  Vector    `gorm:"type:longtext;not null" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
