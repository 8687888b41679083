package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuthzAuditLog 权限变更审计日志
type AuthzAuditLog struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	OperatorAdminID  uint           `gorm:"index;not null" json:"operator_admin_id"` // 操作人
	OperatorUsername string         `gorm:"type:varchar(64)" json:"operator_username"`
	TargetAdminID    *uint          `gorm:"index" json:"target_admin_id,omitempty"` // 仅角色分配时存在
	TargetUsername   string         `gorm:"type:varchar(64)" json:"target_username,omitempty"`
	Action           string         `gorm:"type:varchar(32);index;not null" json:"action"`
	Role             string         `gorm:"type:varchar(64);index" json:"role,omitempty"`
	Object           string         `gorm:"type:varchar(255)" json:"object,omitempty"`
	Method           string         `gorm:"type:varchar(16)" json:"method,omitempty"`
	RequestID        string         `gorm:"type:varchar(64)" json:"request_id"`
	Detail           datatypes.JSON `json:"detail,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AuthzAuditLog) TableName() string {
	return "authz_audit_logs"
}
