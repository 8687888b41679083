package models

import (
	"time"

	"gorm.io/gorm"
)

// Admin 后台运营账号
// IsSuper 为 true 时跳过 RBAC 校验，其余账号的权限来自 casbin 角色
type Admin struct {
	ID                 uint           `gorm:"primarykey" json:"id"`
	Username           string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash       string         `gorm:"not null" json:"-"` // bcrypt
	IsSuper            bool           `gorm:"not null;default:false" json:"is_super"`
	TokenVersion       uint64         `gorm:"not null;default:0" json:"-"`
	TokenInvalidBefore *time.Time     `json:"-"`
	LastLoginAt        *time.Time     `json:"last_login_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (Admin) TableName() string {
	return "admins"
}
