package constants

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// 支付状态常量
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// 支付方式常量
const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodCOD      = "cod"
)

// 订单取消原因（机器可读）
const (
	CancelReasonPaymentAbandoned = "payment_abandoned"
	CancelReasonGatewayFailed    = "gateway_order_failed"
	CancelReasonCustomer         = "customer_cancelled"
	CancelReasonAdmin            = "admin_cancelled"
)

// 支付日志事件类型
const (
	PaymentEventCaptured       = "payment.captured"
	PaymentEventFailed         = "payment.failed"
	PaymentEventRefunded       = "payment.refunded"
	PaymentEventOrderCreated   = "order.created"
	PaymentEventManualVerify   = "payment.manual_verify"
	PaymentEventOrderAbandoned = "order.abandoned"
	PaymentEventUnknown        = "unknown"
)

// 支付日志来源
const (
	PaymentLogSourceWebhook  = "webhook"
	PaymentLogSourceManual   = "manual_verify"
	PaymentLogSourceCheckout = "checkout"
	PaymentLogSourceSweep    = "sweep"
	PaymentLogSourceAdmin    = "admin"
)

// 优惠券类型常量（无规则时的简单折扣）
const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

// 优惠券规则来源类型
const (
	RuleSourceAny                = "any"
	RuleSourceCategory           = "category"
	RuleSourceNewArrival         = "new_arrival"
	RuleSourceCategoryNewArrival = "category_new_arrival"
)

// 优惠券规则权益类型
const (
	RuleBenefitFreeItems          = "free_items"
	RuleBenefitFixedDiscount      = "fixed_discount"
	RuleBenefitPercentageDiscount = "percentage_discount"
	RuleBenefitBundlePrice        = "bundle_price"
)

// 赠品挑选策略
const (
	FreeSelectionCheapest      = "cheapest"
	FreeSelectionMostExpensive = "most_expensive"
	FreeSelectionAny           = "any"
)

// 尺码哨兵值
const SizeDefault = "default"

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskPaymentConfirmationEmail = "payment:confirmation_email"
	TaskAbandonedOrderSweep      = "order:abandoned_sweep"
	TaskOrderStatusEmail         = "order:status_email"
)

// 超时清理触发来源
const (
	SweepTriggerCron  = "cron"
	SweepTriggerQueue = "queue"
	SweepTriggerHTTP  = "http"
)

// 权限审计动作
const (
	AuthzAuditActionPolicyGrant   = "policy_grant"
	AuthzAuditActionPolicyRevoke  = "policy_revoke"
	AuthzAuditActionAdminRolesSet = "admin_roles_set"
)

// 默认货币
const DefaultCurrency = "INR"
