package models

import (
	"time"

	"gorm.io/gorm"
)

// User 购物用户
// 账号由外部认证服务维护，首次携带有效 token 访问时按 token 中的 ID 与邮箱登记
type User struct {
	ID                 uint           `gorm:"primarykey;autoIncrement:false" json:"id"` // 外部用户ID
	Email              string         `gorm:"uniqueIndex;not null" json:"email"`        // 通知邮箱（小写）
	Locale             string         `gorm:"type:varchar(16);default:'en'" json:"locale"`
	Status             string         `gorm:"type:varchar(16);default:'active';index" json:"status"`
	TokenVersion       uint64         `gorm:"not null;default:0" json:"-"` // 递增后旧 token 全部失效
	TokenInvalidBefore *time.Time     `json:"-"`                           // 早于该时间签发的 token 失效
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
