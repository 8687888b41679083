package repository

import (
	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
)

// CouponUsageRepository 优惠券核销记录，每个订单至多一条
type CouponUsageRepository interface {
	Create(usage *models.CouponUsage) error
	ReleaseByOrderID(orderID uint) (*models.CouponUsage, error)
	WithTx(tx *gorm.DB) CouponUsageRepository
}

// GormCouponUsageRepository GORM 实现
type GormCouponUsageRepository struct {
	db *gorm.DB
}

// NewCouponUsageRepository 创建核销记录仓库
func NewCouponUsageRepository(db *gorm.DB) *GormCouponUsageRepository {
	return &GormCouponUsageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponUsageRepository) WithTx(tx *gorm.DB) CouponUsageRepository {
	if tx == nil {
		return r
	}
	return &GormCouponUsageRepository{db: tx}
}

// Create 写入核销记录
func (r *GormCouponUsageRepository) Create(usage *models.CouponUsage) error {
	return r.db.Create(usage).Error
}

// ReleaseByOrderID 删除订单的核销记录并返回它；记录不存在或已被并发释放时返回 nil
func (r *GormCouponUsageRepository) ReleaseByOrderID(orderID uint) (*models.CouponUsage, error) {
	usage, err := firstOrNil[models.CouponUsage](r.db.Where("order_id = ?", orderID))
	if err != nil || usage == nil {
		return nil, err
	}
	result := r.db.Delete(&models.CouponUsage{}, usage.ID)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return usage, nil
}
