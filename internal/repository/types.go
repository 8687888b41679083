package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	UserID        uint
	Status        string
	PaymentStatus string
	PaymentMethod string
	OrderNo       string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// PaymentLogListFilter 查询支付日志的过滤条件
type PaymentLogListFilter struct {
	Page            int
	PageSize        int
	OrderID         uint
	PaymentID       string
	RazorpayOrderID string
	EventType       string
	Source          string
	Verified        *bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// CouponListFilter 优惠券列表筛选
type CouponListFilter struct {
	Code     string
	IsActive *bool
	Page     int
	PageSize int
}

// AbandonedOrderFilter 待清理订单的筛选条件
type AbandonedOrderFilter struct {
	CreatedBefore *time.Time // 严格早于该时间
	Limit         int
}

// AuthzAuditLogListFilter 权限审计日志过滤条件
type AuthzAuditLogListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	TargetAdminID   uint
	Action          string
	Role            string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
