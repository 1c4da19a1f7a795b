package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaginationQuery struct {
	PageNum  int  `form:"pageNum" json:"pageNum"`
	PageSize int  `form:"pageSize" json:"pageSize"`
	Desc     bool `form:"desc" json:"desc"`
}

type PaginationResult struct {
	Total    int `form:"total" json:"total"`
	PageNum  int `form:"pageNum" json:"pageNum"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// BaseModel 所有持久化模型的公共字段，主键为UUID字符串
type BaseModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate 在插入前生成UUID
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// NewPaginationResult 创建一个新的分页结果对象
func NewPaginationResult(total, pageNum, pageSize int) PaginationResult {
	return PaginationResult{
		Total:    total,
		PageNum:  pageNum,
		PageSize: pageSize,
	}
}

// Normalize 修正分页参数
func (q PaginationQuery) Normalize() PaginationQuery {
	if q.PageNum < 1 {
		q.PageNum = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 10
	}
	return q
}
