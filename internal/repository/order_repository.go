package repository

import (
	"strings"
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
// 状态变更均为条件更新（CAS），返回受影响行数，0 表示条件不满足
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDAndUser(id uint, userID uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByPaymentID(paymentID string) (*models.Order, error)
	GetByRazorpayOrderID(razorpayOrderID string) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	SetRazorpayOrderID(id uint, razorpayOrderID string) error
	MarkPaid(id uint, paymentID string, paidAt time.Time) (int64, error)
	MarkPaymentFailed(id uint) (int64, error)
	MarkRefunded(id uint) (int64, error)
	CancelPending(id uint, reason string, at time.Time) (int64, error)
	CancelAbandoned(id uint, at time.Time) (int64, error)
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (int64, error)
	ListAbandoned(filter AbandonedOrderFilter) ([]models.Order, error)
	CountAbandonable(createdAfter, createdBefore *time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *GormOrderRepository) first(query *gorm.DB) (*models.Order, error) {
	return firstOrNil[models.Order](query.Preload("Items"))
}

// GetByID 根据 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	return r.first(r.db.Where("id = ?", id))
}

// GetByIDAndUser 获取用户自己的订单
func (r *GormOrderRepository) GetByIDAndUser(id uint, userID uint) (*models.Order, error) {
	return r.first(r.db.Where("id = ? AND user_id = ?", id, userID))
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	return r.first(r.db.Where("order_no = ?", orderNo))
}

// GetByPaymentID 根据网关支付ID获取订单
func (r *GormOrderRepository) GetByPaymentID(paymentID string) (*models.Order, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, nil
	}
	return r.first(r.db.Where("payment_id = ?", paymentID))
}

// GetByRazorpayOrderID 根据网关订单ID获取订单
func (r *GormOrderRepository) GetByRazorpayOrderID(razorpayOrderID string) (*models.Order, error) {
	razorpayOrderID = strings.TrimSpace(razorpayOrderID)
	if razorpayOrderID == "" {
		return nil, nil
	}
	return r.first(r.db.Where("razorpay_order_id = ?", razorpayOrderID))
}

// ListByUser 用户订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return []models.Order{}, 0, nil
	}
	return r.list(filter)
}

// ListAdmin 后台订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	return r.list(filter)
}

func (r *GormOrderRepository) list(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	return findPage[models.Order](query, filter.Page, filter.PageSize, func(q *gorm.DB) *gorm.DB {
		return q.Preload("Items").Order("id desc")
	})
}

// SetRazorpayOrderID 写入网关订单ID
func (r *GormOrderRepository) SetRazorpayOrderID(id uint, razorpayOrderID string) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"razorpay_order_id": razorpayOrderID,
			"updated_at":        time.Now(),
		}).Error
}

// MarkPaid 标记已支付，仅 pending/failed 可转入；pending 状态同时推进为 confirmed
func (r *GormOrderRepository) MarkPaid(id uint, paymentID string, paidAt time.Time) (int64, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", id, []string{constants.PaymentStatusPending, constants.PaymentStatusFailed}).
		Updates(map[string]interface{}{
			"payment_status": constants.PaymentStatusPaid,
			"payment_id":     paymentID,
			"paid_at":        paidAt,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				constants.OrderStatusPending, constants.OrderStatusConfirmed),
			"updated_at": paidAt,
		})
	return result.RowsAffected, result.Error
}

// MarkPaymentFailed 标记支付失败，仅 pending 可转入
func (r *GormOrderRepository) MarkPaymentFailed(id uint) (int64, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, constants.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": constants.PaymentStatusFailed,
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

// MarkRefunded 标记退款，仅 paid 可转入；未终结的订单状态同步为 refunded
func (r *GormOrderRepository) MarkRefunded(id uint) (int64, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, constants.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": constants.PaymentStatusRefunded,
			"status": gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END",
				refundableStatuses, constants.OrderStatusRefunded),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// 失败的支付尝试可在同一网关订单上重试，超时后与 pending 一样视为放弃
var abandonablePaymentStatuses = []string{
	constants.PaymentStatusPending,
	constants.PaymentStatusFailed,
}

var refundableStatuses = []string{
	constants.OrderStatusPending,
	constants.OrderStatusConfirmed,
	constants.OrderStatusProcessing,
	constants.OrderStatusShipped,
}

// CancelPending 取消未支付的待处理订单
func (r *GormOrderRepository) CancelPending(id uint, reason string, at time.Time) (int64, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status <> ?", id, constants.OrderStatusPending, constants.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"status":              constants.OrderStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        at,
			"updated_at":          at,
		})
	return result.RowsAffected, result.Error
}

// CancelAbandoned 取消超时未支付订单，条件与清理查询一致，避免与刚到达的支付竞争
func (r *GormOrderRepository) CancelAbandoned(id uint, at time.Time) (int64, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status IN ? AND payment_id IS NULL",
			id, constants.OrderStatusPending, abandonablePaymentStatuses).
		Updates(map[string]interface{}{
			"status":              constants.OrderStatusCancelled,
			"cancellation_reason": constants.CancelReasonPaymentAbandoned,
			"cancelled_at":        at,
			"updated_at":          at,
		})
	return result.RowsAffected, result.Error
}

// TransitionStatus 按当前状态条件更新订单状态
func (r *GormOrderRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (int64, error) {
	payload := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range updates {
		payload[key] = value
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(payload)
	return result.RowsAffected, result.Error
}

// ListAbandoned 查询超时未支付的在线支付订单（含订单项），按创建时间升序
func (r *GormOrderRepository) ListAbandoned(filter AbandonedOrderFilter) ([]models.Order, error) {
	query := r.db.Model(&models.Order{}).
		Where("status = ? AND payment_status IN ? AND payment_method = ? AND payment_id IS NULL",
			constants.OrderStatusPending, abandonablePaymentStatuses, constants.PaymentMethodRazorpay)
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var orders []models.Order
	if err := query.Preload("Items").Order("created_at asc, id asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CountAbandonable 统计处于待支付状态的在线支付订单，时间区间为 [createdAfter, createdBefore)
func (r *GormOrderRepository) CountAbandonable(createdAfter, createdBefore *time.Time) (int64, error) {
	query := r.db.Model(&models.Order{}).
		Where("status = ? AND payment_status IN ? AND payment_method = ? AND payment_id IS NULL",
			constants.OrderStatusPending, abandonablePaymentStatuses, constants.PaymentMethodRazorpay)
	if createdAfter != nil {
		query = query.Where("created_at >= ?", *createdAfter)
	}
	if createdBefore != nil {
		query = query.Where("created_at < ?", *createdBefore)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}
