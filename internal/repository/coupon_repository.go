package repository

import (
	"strings"

	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
)

// CouponRepository 优惠券数据访问接口
type CouponRepository interface {
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	Create(coupon *models.Coupon) error
	Update(coupon *models.Coupon) error
	Delete(id uint) error
	List(filter CouponListFilter) ([]models.Coupon, int64, error)
	IncrementUsedCount(id uint, delta int) error
	DecrementUsedCount(id uint, delta int) error
	WithTx(tx *gorm.DB) *GormCouponRepository
}

// GormCouponRepository GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓库
func NewCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponRepository) WithTx(tx *gorm.DB) *GormCouponRepository {
	if tx == nil {
		return r
	}
	return &GormCouponRepository{db: tx}
}

// NormalizeCouponCode 统一优惠码格式（去空白、转大写）
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *GormCouponRepository) withRules(query *gorm.DB) *gorm.DB {
	return query.Preload("Rules", func(db *gorm.DB) *gorm.DB {
		return db.Order("rule_priority asc, id asc")
	})
}

// GetByID 根据ID获取优惠券（含规则）
func (r *GormCouponRepository) GetByID(id uint) (*models.Coupon, error) {
	return firstOrNil[models.Coupon](r.withRules(r.db), id)
}

// GetByCode 根据优惠码获取优惠券，大小写不敏感
func (r *GormCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return nil, nil
	}
	return firstOrNil[models.Coupon](r.withRules(r.db).Where("UPPER(code) = ?", normalized))
}

// Create 创建优惠券及其规则
func (r *GormCouponRepository) Create(coupon *models.Coupon) error {
	coupon.Code = NormalizeCouponCode(coupon.Code)
	return r.db.Create(coupon).Error
}

// Update 更新优惠券并整体替换规则
func (r *GormCouponRepository) Update(coupon *models.Coupon) error {
	coupon.Code = NormalizeCouponCode(coupon.Code)
	rules := coupon.Rules
	if err := r.db.Omit("Rules").Save(coupon).Error; err != nil {
		return err
	}
	if err := r.db.Where("coupon_id = ?", coupon.ID).Delete(&models.CouponRule{}).Error; err != nil {
		return err
	}
	for i := range rules {
		rules[i].ID = 0
		rules[i].CouponID = coupon.ID
	}
	if len(rules) > 0 {
		if err := r.db.Create(&rules).Error; err != nil {
			return err
		}
	}
	coupon.Rules = rules
	return nil
}

// Delete 删除优惠券与规则
func (r *GormCouponRepository) Delete(id uint) error {
	if err := r.db.Where("coupon_id = ?", id).Delete(&models.CouponRule{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Coupon{}, id).Error
}

// List 获取优惠券列表
func (r *GormCouponRepository) List(filter CouponListFilter) ([]models.Coupon, int64, error) {
	query := r.db.Model(&models.Coupon{})
	if code := NormalizeCouponCode(filter.Code); code != "" {
		query = query.Where("UPPER(code) = ?", code)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	return findPage[models.Coupon](query, filter.Page, filter.PageSize, func(q *gorm.DB) *gorm.DB {
		return r.withRules(q).Order("id desc")
	})
}

// IncrementUsedCount 增加优惠券使用次数
func (r *GormCouponRepository) IncrementUsedCount(id uint, delta int) error {
	if delta == 0 {
		delta = 1
	}
	return r.db.Model(&models.Coupon{}).
		Where("id = ?", id).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", delta)).Error
}

// DecrementUsedCount 减少优惠券使用次数
func (r *GormCouponRepository) DecrementUsedCount(id uint, delta int) error {
	if delta == 0 {
		delta = 1
	}
	if delta < 0 {
		delta = -delta
	}
	return r.db.Model(&models.Coupon{}).
		Where("id = ?", id).
		Where("used_count >= ?", delta).
		UpdateColumn("used_count", gorm.Expr("used_count - ?", delta)).Error
}
