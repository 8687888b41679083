package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 商品分类表
type Category struct {
	ID        uint           `gorm:"primarykey" json:"id"`                 // 主键
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"`     // 唯一标识
	Name      string         `gorm:"not null" json:"name"`                 // 分类名称
	SortOrder int            `gorm:"not null;default:0" json:"sort_order"` // 排序权重
	CreatedAt time.Time      `gorm:"index" json:"created_at"`              // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`              // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                       // 软删除时间
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
