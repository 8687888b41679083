package repository

import (
	"strings"

	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
)

// PaymentLogRepository 支付审计日志数据访问接口（只追加）
type PaymentLogRepository interface {
	Create(log *models.PaymentLog) error
	FindLatestOrderID(paymentID, razorpayOrderID string) (uint, error)
	ListByOrderID(orderID uint) ([]models.PaymentLog, error)
	List(filter PaymentLogListFilter) ([]models.PaymentLog, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentLogRepository
}

// GormPaymentLogRepository GORM 实现
type GormPaymentLogRepository struct {
	db *gorm.DB
}

// NewPaymentLogRepository 创建支付日志仓库
func NewPaymentLogRepository(db *gorm.DB) *GormPaymentLogRepository {
	return &GormPaymentLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentLogRepository) WithTx(tx *gorm.DB) *GormPaymentLogRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentLogRepository{db: tx}
}

// Create 追加支付日志
func (r *GormPaymentLogRepository) Create(log *models.PaymentLog) error {
	return r.db.Create(log).Error
}

// FindLatestOrderID 通过历史日志反查订单ID，未找到返回 0
func (r *GormPaymentLogRepository) FindLatestOrderID(paymentID, razorpayOrderID string) (uint, error) {
	paymentID = strings.TrimSpace(paymentID)
	razorpayOrderID = strings.TrimSpace(razorpayOrderID)
	if paymentID == "" && razorpayOrderID == "" {
		return 0, nil
	}
	query := r.db.Model(&models.PaymentLog{}).Where("order_id IS NOT NULL")
	switch {
	case paymentID != "" && razorpayOrderID != "":
		query = query.Where("payment_id = ? OR razorpay_order_id = ?", paymentID, razorpayOrderID)
	case paymentID != "":
		query = query.Where("payment_id = ?", paymentID)
	default:
		query = query.Where("razorpay_order_id = ?", razorpayOrderID)
	}
	var rows []models.PaymentLog
	if err := query.Select("id", "order_id").Order("id desc").Limit(1).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 || rows[0].OrderID == nil {
		return 0, nil
	}
	return *rows[0].OrderID, nil
}

// ListByOrderID 获取订单的支付日志
func (r *GormPaymentLogRepository) ListByOrderID(orderID uint) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// List 后台支付日志列表
func (r *GormPaymentLogRepository) List(filter PaymentLogListFilter) ([]models.PaymentLog, int64, error) {
	query := r.db.Model(&models.PaymentLog{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.PaymentID != "" {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.RazorpayOrderID != "" {
		query = query.Where("razorpay_order_id = ?", filter.RazorpayOrderID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	return findPage[models.PaymentLog](query, filter.Page, filter.PageSize, func(q *gorm.DB) *gorm.DB {
		return q.Order("id desc")
	})
}
