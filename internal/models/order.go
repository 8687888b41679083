package models

import (
	"time"

	"gorm.io/datatypes"
)

// ShippingAddress 收货地址快照
type ShippingAddress struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order 订单表（只流转状态，不删除）
type Order struct {
	ID                 uint                                `gorm:"primarykey" json:"id"`                                         // 主键
	OrderNo            string                              `gorm:"uniqueIndex;not null" json:"order_no"`                         // 订单编号
	UserID             uint                                `gorm:"index;not null" json:"user_id"`                                // 用户ID
	Email              string                              `gorm:"index" json:"email"`                                           // 通知邮箱
	ShippingAddress    datatypes.JSONType[ShippingAddress] `gorm:"type:json" json:"shipping_address"`                            // 收货地址
	Currency           string                              `gorm:"not null" json:"currency"`                                     // 币种
	SubtotalAmount     Money                               `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal_amount"` // 商品小计
	TaxAmount          Money                               `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`      // 税费
	ShippingAmount     Money                               `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_amount"` // 运费
	DiscountAmount     Money                               `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	TotalAmount        Money                               `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`    // 实付金额
	CouponCode         string                              `gorm:"index" json:"coupon_code,omitempty"`                           // 使用的优惠码
	Status             string                              `gorm:"index;not null" json:"status"`                                 // 订单状态
	PaymentStatus      string                              `gorm:"index;not null" json:"payment_status"`                         // 支付状态
	PaymentMethod      string                              `gorm:"index;not null" json:"payment_method"`                         // 支付方式
	PaymentID          *string                             `gorm:"index" json:"payment_id"`                                      // 网关支付ID（捕获前为空）
	RazorpayOrderID    string                              `gorm:"index" json:"razorpay_order_id,omitempty"`                     // 网关订单ID
	CancellationReason string                              `gorm:"type:varchar(64)" json:"cancellation_reason,omitempty"`        // 取消原因
	PaidAt             *time.Time                          `gorm:"index" json:"paid_at"`                                         // 支付时间
	CancelledAt        *time.Time                          `gorm:"index" json:"cancelled_at"`                                    // 取消时间
	CreatedAt          time.Time                           `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt          time.Time                           `gorm:"index" json:"updated_at"`                                      // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsPaid 是否已支付
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == "paid"
}
