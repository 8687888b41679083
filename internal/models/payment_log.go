package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentLog 支付审计日志（只追加，不更新不删除）
type PaymentLog struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                // 主键
	OrderID         *uint          `gorm:"index" json:"order_id"`                               // 订单ID（可能无法解析）
	PaymentID       string         `gorm:"index" json:"payment_id"`                             // 网关支付ID
	RazorpayOrderID string         `gorm:"index" json:"razorpay_order_id"`                      // 网关订单ID
	EventType       string         `gorm:"index;not null" json:"event_type"`                    // 事件类型
	Status          string         `gorm:"type:varchar(32)" json:"status"`                      // 网关侧状态
	Amount          Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 金额（主单位）
	Currency        string         `gorm:"type:varchar(8)" json:"currency"`                     // 币种
	Verified        bool           `gorm:"not null;default:false;index" json:"verified"`        // 签名/来源是否可信
	Source          string         `gorm:"type:varchar(32);index" json:"source"`                // 来源
	RequestID       string         `gorm:"type:varchar(64)" json:"request_id"`                  // 请求ID
	Message         string         `gorm:"type:text" json:"message,omitempty"`                  // 附加说明
	Payload         datatypes.JSON `json:"payload,omitempty"`                                   // 原始载荷
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
}

// TableName 指定表名
func (PaymentLog) TableName() string {
	return "payment_logs"
}
