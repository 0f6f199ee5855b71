// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DocumentStatus 表示文档的生命周期状态。
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusDone       DocumentStatus = "DONE"
	StatusFailed     DocumentStatus = "FAILED"
)

// IsTerminal 判断状态是否为终态，终态之后不允许再修改进度。
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid 判断是否为已知状态。
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Document 对应于数据库中的 documents 表。
type Document struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Status    DocumentStatus `gorm:"type:varchar(16);not null;default:PENDING;index" json:"status"`
	Progress  int            `gorm:"not null;default:0" json:"progress"`
	ObjectKey string         `gorm:"type:varchar(512)" json:"-"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// StatusPayload 是状态广播的负载，与前端的 documentUpdate 事件结构保持一致。
type StatusPayload struct {
	ID       string         `json:"id"`
	Status   DocumentStatus `json:"status"`
	Progress int            `json:"progress"`
}
